package statistics

import (
	"math"
	"testing"
)

func TestStatistics_Empty(t *testing.T) {
	stats := &Statistics{}

	if stats.Mean() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdError() != 0 {
		t.Errorf("Expected stderr of 0 for empty stats, got %f", stats.StdError())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0 for empty stats, got %f", stats.Median())
	}
	if stats.HandsPerRound() != 0 {
		t.Errorf("Expected 0 hands per round for empty stats, got %f", stats.HandsPerRound())
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Expected empty stats to validate, got %v", err)
	}
}

func TestStatistics_SingleRun(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RunResult{Rounds: 3, Hands: 7, Discards: 5, Earned: 14, Finished: true})

	if stats.Runs != 1 {
		t.Errorf("Expected 1 run, got %d", stats.Runs)
	}
	if stats.Mean() != 3 {
		t.Errorf("Expected mean of 3, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for a single run, got %f", stats.Variance())
	}
	if stats.MaxRounds != 3 {
		t.Errorf("Expected max rounds of 3, got %d", stats.MaxRounds)
	}
	if got := stats.HandsPerRound(); math.Abs(got-7.0/3.0) > 1e-9 {
		t.Errorf("Expected 2.33 hands per round, got %f", got)
	}
	if stats.Finished != 1 || stats.Zero != 0 {
		t.Errorf("Expected 1 finished and 0 zero-round runs, got %d and %d", stats.Finished, stats.Zero)
	}
}

func TestStatistics_MultipleRuns(t *testing.T) {
	stats := &Statistics{}
	for _, rounds := range []int{0, 2, 4, 4, 5} {
		stats.Add(RunResult{Rounds: rounds, Hands: rounds * 2, Finished: true})
	}

	if stats.Mean() != 3 {
		t.Errorf("Expected mean of 3, got %f", stats.Mean())
	}
	// (9 + 1 + 1 + 1 + 4) / 4
	if stats.Variance() != 4 {
		t.Errorf("Expected variance of 4, got %f", stats.Variance())
	}
	if stats.StdDev() != 2 {
		t.Errorf("Expected stddev of 2, got %f", stats.StdDev())
	}
	if stats.Median() != 4 {
		t.Errorf("Expected median of 4, got %f", stats.Median())
	}
	if stats.Percentile(0) != 0 || stats.Percentile(1) != 5 {
		t.Errorf("Expected percentiles 0 and 5 at the ends, got %f and %f", stats.Percentile(0), stats.Percentile(1))
	}
	if stats.Percentile(0.125) != 1 {
		t.Errorf("Expected interpolated percentile of 1, got %f", stats.Percentile(0.125))
	}
	if stats.Zero != 1 {
		t.Errorf("Expected 1 zero-round run, got %d", stats.Zero)
	}

	low, high := stats.ConfidenceInterval95()
	margin := 1.96 * 2 / math.Sqrt(5)
	if math.Abs(low-(3-margin)) > 1e-9 || math.Abs(high-(3+margin)) > 1e-9 {
		t.Errorf("Expected interval 3±%f, got [%f, %f]", margin, low, high)
	}
}

func TestStatistics_Merge(t *testing.T) {
	a := &Statistics{}
	a.Add(RunResult{Rounds: 1, Hands: 2, Earned: 5, Finished: true})

	b := &Statistics{}
	b.Add(RunResult{Rounds: 6, Hands: 10, Earned: 30})
	b.Add(RunResult{Rounds: 2, Hands: 4, Earned: 8, Finished: true})

	a.Merge(b.Clone())

	if a.Runs != 3 || len(a.Values) != 3 {
		t.Fatalf("Expected 3 runs after merge, got %d (%d values)", a.Runs, len(a.Values))
	}
	if a.Mean() != 3 {
		t.Errorf("Expected mean of 3, got %f", a.Mean())
	}
	if a.MaxRounds != 6 || a.Finished != 2 || a.Earned != 43 || a.Hands != 16 {
		t.Errorf("Unexpected merged totals: %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Expected merged stats to validate, got %v", err)
	}
}

func TestStatistics_CloneIsIndependent(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RunResult{Rounds: 2})

	c := stats.Clone()
	c.Values[0] = 99

	if stats.Values[0] != 2 {
		t.Errorf("Expected original values untouched, got %f", stats.Values[0])
	}
}

func TestStatistics_Validate(t *testing.T) {
	tests := []struct {
		name  string
		stats Statistics
	}{
		{"values mismatch", Statistics{Runs: 2, Values: []float64{1}, SumRounds: 1}},
		{"sum mismatch", Statistics{Runs: 1, Values: []float64{1}, SumRounds: 4}},
		{"too many finished", Statistics{Runs: 1, Values: []float64{1}, SumRounds: 1, Finished: 2}},
		{"too many zero", Statistics{Runs: 1, Values: []float64{1}, SumRounds: 1, Zero: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.stats.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestStatistics_Summary(t *testing.T) {
	stats := &Statistics{}
	stats.Add(RunResult{Rounds: 2, Hands: 5, Discards: 3, Earned: 12, Finished: true})
	stats.Add(RunResult{Rounds: 4, Hands: 9, Discards: 6, Earned: 25})

	sum := stats.Summary()
	if sum.Runs != 2 || sum.Finished != 1 {
		t.Errorf("Expected 2 runs with 1 finished, got %d and %d", sum.Runs, sum.Finished)
	}
	if sum.MeanRounds != 3 || sum.MedianRounds != 3 || sum.MaxRounds != 4 {
		t.Errorf("Unexpected round figures: %+v", sum)
	}
	if sum.CI95[0] >= sum.MeanRounds || sum.CI95[1] <= sum.MeanRounds {
		t.Errorf("Expected the interval to straddle the mean, got %v", sum.CI95)
	}
	if sum.HandsPerRound != 14.0/6.0 {
		t.Errorf("Expected %f hands per round, got %f", 14.0/6.0, sum.HandsPerRound)
	}
}
