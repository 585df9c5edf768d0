// Package statistics summarises how far the bot gets in each run.
package statistics

import (
	"fmt"
	"math"
	"sort"
)

// RunResult is the outcome of one run, from starting it to game over
type RunResult struct {
	Rounds   int  // blinds beaten and cashed out
	Hands    int  // hands played
	Discards int  // discards used
	Earned   int  // money paid out at cash-outs
	Finished bool // ended in game over rather than a disconnect
}

// Statistics accumulates run results. Rounds beaten per run is the measure
// the mean, spread and percentiles are taken over.
type Statistics struct {
	Runs       int
	SumRounds  float64
	SumRounds2 float64   // Sum of squares for variance calculation
	Values     []float64 // Rounds per run, in the order added

	Hands    int
	Discards int
	Earned   int
	Finished int // Runs that reached game over

	MaxRounds int
	Zero      int // Runs lost on the first blind
}

// Mean returns the average number of rounds beaten per run
func (s *Statistics) Mean() float64 {
	if s.Runs == 0 {
		return 0
	}
	return s.SumRounds / float64(s.Runs)
}

// Variance returns the sample variance of rounds per run
func (s *Statistics) Variance() float64 {
	if s.Runs < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumRounds2 - float64(s.Runs)*mean*mean) / float64(s.Runs-1)
}

// StdDev returns the sample standard deviation of rounds per run
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Runs == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Runs))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add records one run
func (s *Statistics) Add(r RunResult) {
	rounds := float64(r.Rounds)
	s.Runs++
	s.SumRounds += rounds
	s.SumRounds2 += rounds * rounds
	s.Values = append(s.Values, rounds)

	s.Hands += r.Hands
	s.Discards += r.Discards
	s.Earned += r.Earned
	if r.Finished {
		s.Finished++
	}
	if r.Rounds > s.MaxRounds {
		s.MaxRounds = r.Rounds
	}
	if r.Rounds == 0 {
		s.Zero++
	}
}

// Merge folds other into s
func (s *Statistics) Merge(other Statistics) {
	s.Runs += other.Runs
	s.SumRounds += other.SumRounds
	s.SumRounds2 += other.SumRounds2
	s.Values = append(s.Values, other.Values...)
	s.Hands += other.Hands
	s.Discards += other.Discards
	s.Earned += other.Earned
	s.Finished += other.Finished
	s.Zero += other.Zero
	if other.MaxRounds > s.MaxRounds {
		s.MaxRounds = other.MaxRounds
	}
}

// Clone returns a deep copy
func (s *Statistics) Clone() Statistics {
	c := *s
	c.Values = append([]float64(nil), s.Values...)
	return c
}

// HandsPerRound returns the average number of hands it took to beat a blind
func (s *Statistics) HandsPerRound() float64 {
	if s.SumRounds == 0 {
		return 0
	}
	return float64(s.Hands) / s.SumRounds
}

// Median returns the median rounds per run
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the rounds per run at p, from 0.0 to 1.0, interpolating
// between neighbours
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Validate checks the running sums agree with the recorded values
func (s *Statistics) Validate() error {
	if len(s.Values) != s.Runs {
		return fmt.Errorf("values length (%d) does not match runs (%d)", len(s.Values), s.Runs)
	}

	var sum float64
	for _, v := range s.Values {
		sum += v
	}
	if math.Abs(sum-s.SumRounds) > 1e-6 {
		return fmt.Errorf("round ledger mismatch: values sum to %.0f, recorded %.0f", sum, s.SumRounds)
	}

	if s.Finished > s.Runs {
		return fmt.Errorf("finished runs (%d) exceed runs (%d)", s.Finished, s.Runs)
	}
	if s.Zero > s.Runs {
		return fmt.Errorf("zero-round runs (%d) exceed runs (%d)", s.Zero, s.Runs)
	}
	return nil
}

// Summary is the digest written to the results file
type Summary struct {
	Runs          int        `json:"runs"`
	Finished      int        `json:"finished"`
	MeanRounds    float64    `json:"mean_rounds"`
	StdDev        float64    `json:"stddev"`
	CI95          [2]float64 `json:"ci95"`
	MedianRounds  float64    `json:"median_rounds"`
	P90Rounds     float64    `json:"p90_rounds"`
	MaxRounds     int        `json:"max_rounds"`
	ZeroRounds    int        `json:"zero_rounds"`
	Hands         int        `json:"hands"`
	Discards      int        `json:"discards"`
	Earned        int        `json:"earned"`
	HandsPerRound float64    `json:"hands_per_round"`
}

func (s *Statistics) Summary() Summary {
	low, high := s.ConfidenceInterval95()
	return Summary{
		Runs:          s.Runs,
		Finished:      s.Finished,
		MeanRounds:    s.Mean(),
		StdDev:        s.StdDev(),
		CI95:          [2]float64{low, high},
		MedianRounds:  s.Median(),
		P90Rounds:     s.Percentile(0.9),
		MaxRounds:     s.MaxRounds,
		ZeroRounds:    s.Zero,
		Hands:         s.Hands,
		Discards:      s.Discards,
		Earned:        s.Earned,
		HandsPerRound: s.HandsPerRound(),
	}
}
