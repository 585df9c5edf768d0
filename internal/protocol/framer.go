package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"
)

// MaxBodySize bounds how many bytes a single body or an undelimited kind may
// occupy in the buffer.
const MaxBodySize = 1 << 20

type framerState int

const (
	stateScanning framerState = iota // looking for the kind delimiter
	stateBody                        // a kind was read; collecting its body
)

// Framer splits an incoming byte stream into messages. Bytes are fed in as
// they arrive; Next returns a message once its delimiter and body are complete.
//
// Bodies are balanced JSON values scanned with awareness of string literals,
// so braces inside strings do not end a body early. A body that is balanced
// but not valid JSON is logged and dropped; the message is still returned
// with an empty body.
type Framer struct {
	buf    []byte
	state  framerState
	logger *log.Logger

	kind       string
	scanned    int
	depth      int
	inString   bool
	escaped    bool
	discarding bool

	dropped int
}

// NewFramer creates a framer that reports malformed input to logger
func NewFramer(logger *log.Logger) *Framer {
	return &Framer{logger: logger}
}

// Feed appends newly read bytes
func (f *Framer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

// Buffered returns the number of bytes not yet consumed
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Dropped returns how many bodies or fragments have been discarded
func (f *Framer) Dropped() int {
	return f.dropped
}

// Next extracts the next complete message, if any
func (f *Framer) Next() (Message, bool) {
	for {
		switch f.state {
		case stateScanning:
			i := bytes.IndexByte(f.buf, Delimiter)
			if i < 0 {
				if len(f.buf) > MaxBodySize {
					f.drop("undelimited fragment exceeds limit", f.buf[:64])
					f.buf = f.buf[:0]
				}
				return Message{}, false
			}

			kind := strings.TrimSpace(string(f.buf[:i]))
			f.buf = f.buf[i+1:]
			if kind == "" {
				continue
			}
			if kind == KindPing || kind == KindPong {
				return Message{Kind: kind}, true
			}

			f.kind = kind
			f.state = stateBody
			f.resetBody()

		case stateBody:
			if f.scanned == 0 && !f.discarding {
				if len(f.buf) == 0 {
					return Message{}, false
				}
				if c := f.buf[0]; c != '{' && c != '[' {
					return f.emit(nil), true
				}
			}

			body, complete := f.scanBody()
			if !complete {
				return Message{}, false
			}
			if body != nil && !json.Valid(body) {
				f.drop("malformed body", body)
				body = nil
			}
			return f.emit(body), true
		}
	}
}

// scanBody advances the balance scanner over buffered bytes. It returns the
// body once the outermost value closes.
func (f *Framer) scanBody() ([]byte, bool) {
	for f.scanned < len(f.buf) {
		c := f.buf[f.scanned]
		f.scanned++

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			f.inString = true
		case '{', '[':
			f.depth++
		case '}', ']':
			f.depth--
			if f.depth == 0 {
				n := f.scanned
				var body []byte
				if !f.discarding {
					body = make([]byte, n)
					copy(body, f.buf[:n])
				}
				f.buf = f.buf[n:]
				return body, true
			}
		}
	}

	if f.discarding {
		f.buf = f.buf[:0]
		f.scanned = 0
	} else if f.scanned > MaxBodySize {
		f.drop("body exceeds limit", f.buf[:64])
		f.discarding = true
		f.buf = f.buf[:0]
		f.scanned = 0
	}
	return nil, false
}

func (f *Framer) emit(body []byte) Message {
	msg := Message{Kind: f.kind, Body: body}
	f.state = stateScanning
	f.kind = ""
	f.resetBody()
	return msg
}

func (f *Framer) resetBody() {
	f.scanned = 0
	f.depth = 0
	f.inString = false
	f.escaped = false
	f.discarding = false
}

func (f *Framer) drop(reason string, fragment []byte) {
	f.dropped++
	if f.logger != nil {
		f.logger.Warn("Dropping frame data", "reason", reason, "kind", f.kind, "fragment", string(fragment))
	}
}
