package interview

import (
	"testing"
	"time"
)

func TestDeadlineStep(t *testing.T) {
	t.Parallel()

	d := deadline{remaining: 75 * time.Second, tick: 10 * time.Second, warning: time.Minute}
	type step struct {
		secs          int
		warn, expired bool
	}
	want := []step{
		{65, false, false},
		{55, true, false},
		{45, false, false},
		{35, false, false},
		{25, false, false},
		{15, false, false},
		{5, false, false},
		{0, false, true},
	}
	for i, w := range want {
		secs, warn, expired := d.step()
		if (step{secs, warn, expired}) != w {
			t.Fatalf("step %d = %d/%v/%v, want %+v", i, secs, warn, expired, w)
		}
	}
}

func TestDeadlineNeverNegative(t *testing.T) {
	t.Parallel()

	d := deadline{remaining: 3 * time.Second, tick: 10 * time.Second, warning: time.Minute}
	secs, warn, expired := d.step()
	if secs != 0 || warn || !expired || d.remaining != 0 {
		t.Fatalf("got %d/%v/%v remaining=%v", secs, warn, expired, d.remaining)
	}
}

func TestRemainingFrom(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 30 * time.Minute},
		{1750 * time.Second, 50 * time.Second},
		{2 * time.Hour, 0},
	}
	for _, tc := range cases {
		if got := remainingFrom(30*time.Minute, now.Add(-tc.elapsed), now); got != tc.want {
			t.Fatalf("elapsed %v: got %v, want %v", tc.elapsed, got, tc.want)
		}
	}
}
