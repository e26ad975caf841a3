package dispatch

import (
	"testing"
	"time"
)

func fixedRand(v float64) func() float64 {
	return func() float64 { return v }
}

func TestSendTimeFixed(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	for i, want := range []time.Time{
		start,
		start.Add(30 * time.Minute),
		start.Add(60 * time.Minute),
	} {
		got := SendTime(IntervalFixed, start, 30, i, fixedRand(0))
		if !got.Equal(want) {
			t.Errorf("post %d: got %v, want %v", i, got, want)
		}
	}
}

func TestSendTimeRandomBounds(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	const interval = 60

	// Gap is a single draw in [0.5*interval, 1.5*interval] scaled by index.
	for _, r := range []float64{0, 0.5, 0.999} {
		for i := 0; i < 4; i++ {
			got := SendTime(IntervalRandom, start, interval, i, fixedRand(r))
			lo := start.Add(time.Duration(float64(i)*0.5*interval) * time.Minute)
			hi := start.Add(time.Duration(float64(i)*1.5*interval) * time.Minute)
			if got.Before(lo) || got.After(hi) {
				t.Errorf("post %d (r=%v): %v outside [%v, %v]", i, r, got, lo, hi)
			}
		}
	}
}

func TestSendTimeRandomFirstPostIsStart(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	got := SendTime(IntervalRandom, start, 60, 0, fixedRand(0.7))
	if !got.Equal(start) {
		t.Errorf("first post = %v, want start %v", got, start)
	}
}

func TestSendTimeOptimal(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		i        int
		wantDay  int
		wantHour int
	}{
		{0, 10, 9},
		{1, 10, 12},
		{2, 10, 15},
		{3, 10, 18},
		{4, 10, 21},
		{5, 11, 9},
		{7, 11, 15},
		{10, 12, 9},
	}
	for _, tt := range tests {
		got := SendTime(IntervalOptimal, start, 0, tt.i, fixedRand(0))
		if got.Day() != tt.wantDay || got.Hour() != tt.wantHour || got.Minute() != 0 {
			t.Errorf("post %d: got day=%d hour=%d min=%d, want day=%d hour=%d",
				tt.i, got.Day(), got.Hour(), got.Minute(), tt.wantDay, tt.wantHour)
		}
	}
}

func TestSendTimeOptimalKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, loc)

	got := SendTime(IntervalOptimal, start, 0, 1, fixedRand(0))
	if got.Location() != loc {
		t.Errorf("location = %v, want %v", got.Location(), loc)
	}
}
