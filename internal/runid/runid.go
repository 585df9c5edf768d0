// Package runid names runs with time-ordered identifiers: a UUIDv7 written as
// 26 characters of Crockford base32.
package runid

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
)

const (
	alphabet = "0123456789abcdefghjkmnpqrstvwxyz"
	Length   = 26
)

// Generator mints run IDs from a clock and a source of random bytes
type Generator struct {
	clock quartz.Clock

	mu   sync.Mutex
	rand io.Reader
}

// New returns a generator. A nil clock uses the wall clock and a nil reader
// uses crypto/rand.
func New(clock quartz.Clock, random io.Reader) *Generator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if random == nil {
		random = rand.Reader
	}
	return &Generator{clock: clock, rand: random}
}

// Next returns a fresh ID
func (g *Generator) Next() string {
	var u [16]byte

	ms := g.clock.Now().UnixMilli()
	for i := 0; i < 6; i++ {
		u[i] = byte(ms >> (40 - 8*i))
	}

	g.mu.Lock()
	_, err := io.ReadFull(g.rand, u[6:])
	g.mu.Unlock()
	if err != nil {
		panic("runid: reading random bytes: " + err.Error())
	}

	u[6] = u[6]&0x0f | 0x70 // version 7
	u[8] = u[8]&0x3f | 0x80 // RFC 4122 variant
	return encode(u)
}

// Time returns the millisecond timestamp embedded in id
func Time(id string) (time.Time, error) {
	u, err := decode(id)
	if err != nil {
		return time.Time{}, err
	}
	var ms int64
	for i := 0; i < 6; i++ {
		ms = ms<<8 | int64(u[i])
	}
	return time.UnixMilli(ms), nil
}

// Validate reports whether id could have come from a Generator
func Validate(id string) error {
	_, err := decode(id)
	return err
}

// encode writes the 128 bits behind two zero bits, five bits per character
func encode(u [16]byte) string {
	out := make([]byte, Length)
	for i := range out {
		var v byte
		for b := 0; b < 5; b++ {
			bit := i*5 + b - 2
			v <<= 1
			if bit >= 0 {
				v |= u[bit/8] >> (7 - bit%8) & 1
			}
		}
		out[i] = alphabet[v]
	}
	return string(out)
}

func decode(id string) ([16]byte, error) {
	var u [16]byte
	if len(id) != Length {
		return u, fmt.Errorf("run ID must be %d characters, got %d", Length, len(id))
	}
	for i := 0; i < Length; i++ {
		v := strings.IndexByte(alphabet, id[i])
		if v < 0 {
			return u, fmt.Errorf("invalid character %q at position %d", id[i], i)
		}
		for b := 0; b < 5; b++ {
			set := v>>(4-b)&1 == 1
			bit := i*5 + b - 2
			if bit < 0 {
				if set {
					return u, fmt.Errorf("run ID overflows 128 bits")
				}
				continue
			}
			if set {
				u[bit/8] |= 1 << (7 - bit%8)
			}
		}
	}
	return u, nil
}
