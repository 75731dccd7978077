package deviceflow

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewPollRunState(t *testing.T) {
	tests := []struct {
		name     string
		interval int
		want     time.Duration
	}{
		{"provider interval below floor", 1, 5 * time.Second},
		{"missing interval", 0, 5 * time.Second},
		{"interval at floor", 5, 5 * time.Second},
		{"interval above floor", 10, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewPollRunState(DeviceStart{IntervalSec: tt.interval}, epoch)
			want := PollRunState{StartedAt: epoch, PollingInterval: tt.want}
			if diff := cmp.Diff(want, st); diff != "" {
				t.Errorf("NewPollRunState() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBackoffAuthorizationPending(t *testing.T) {
	b := NewBackoff(noJitter)
	st := NewPollRunState(testStart(), epoch)

	for i := 0; i < 50; i++ {
		d := b.Next(CategoryAuthorizationPending, false, st)
		if d.Terminal {
			t.Fatalf("poll %d: unexpected terminal outcome %v", i, d.Outcome)
		}
		if d.Delay != 5*time.Second {
			t.Fatalf("poll %d: delay = %v, want 5s", i, d.Delay)
		}
		want := PollRunState{StartedAt: epoch, PollingInterval: 5 * time.Second}
		if diff := cmp.Diff(want, d.State); diff != "" {
			t.Fatalf("poll %d: state mismatch (-want +got):\n%s", i, diff)
		}
		st = d.State
	}
}

func TestBackoffPendingResetsCounters(t *testing.T) {
	b := NewBackoff(noJitter)
	st := PollRunState{
		PollingInterval:          15 * time.Second,
		ConsecutiveNetworkErrors: 3,
		ConsecutiveUnknownErrors: 2,
		SlowDownCount:            2,
	}

	d := b.Next(CategoryAuthorizationPending, false, st)
	want := PollRunState{PollingInterval: 15 * time.Second, SlowDownCount: 1}
	if diff := cmp.Diff(want, d.State); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
	if d.Delay != 15*time.Second {
		t.Errorf("delay = %v, want 15s", d.Delay)
	}
}

func TestBackoffSlowDown(t *testing.T) {
	b := NewBackoff(noJitter)
	st := NewPollRunState(testStart(), epoch)
	st.ConsecutiveNetworkErrors = 4
	st.ConsecutiveUnknownErrors = 1

	for count := 1; count <= maxSlowDowns; count++ {
		d := b.Next(CategorySlowDown, false, st)
		if d.Terminal {
			t.Fatalf("slow_down %d: unexpected terminal outcome %v", count, d.Outcome)
		}
		wantInterval := 5*time.Second + time.Duration(count)*SlowDownStep
		if d.State.PollingInterval != wantInterval {
			t.Fatalf("slow_down %d: interval = %v, want %v", count, d.State.PollingInterval, wantInterval)
		}
		if d.Delay != wantInterval {
			t.Fatalf("slow_down %d: delay = %v, want %v", count, d.Delay, wantInterval)
		}
		if d.State.SlowDownCount != count {
			t.Fatalf("slow_down %d: count = %d", count, d.State.SlowDownCount)
		}
		if d.State.ConsecutiveNetworkErrors != 0 || d.State.ConsecutiveUnknownErrors != 0 {
			t.Fatalf("slow_down %d: error counters not reset: %+v", count, d.State)
		}
		st = d.State
	}

	d := b.Next(CategorySlowDown, false, st)
	if !d.Terminal || d.Outcome != OutcomeRateLimited {
		t.Fatalf("11th slow_down: got terminal=%v outcome=%v, want rate_limited", d.Terminal, d.Outcome)
	}
}

func TestBackoffPendingRelievesSlowDown(t *testing.T) {
	b := NewBackoff(noJitter)
	st := NewPollRunState(testStart(), epoch)

	// Interleaving pending responses keeps the attempt alive past 10 slow downs
	for i := 0; i < 30; i++ {
		d := b.Next(CategorySlowDown, false, st)
		if d.Terminal {
			t.Fatalf("slow_down %d: unexpected terminal outcome", i)
		}
		d = b.Next(CategoryAuthorizationPending, false, d.State)
		st = d.State
	}
	if st.SlowDownCount != 0 {
		t.Errorf("slow down count = %d, want 0", st.SlowDownCount)
	}
	if want := 5*time.Second + 30*SlowDownStep; st.PollingInterval != want {
		t.Errorf("interval = %v, want %v", st.PollingInterval, want)
	}
}

func TestBackoffNetworkError(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     []time.Duration // delay before retry k=1..7
	}{
		{
			interval: 5 * time.Second,
			want: []time.Duration{
				10 * time.Second, 15 * time.Second, 20 * time.Second, 25 * time.Second,
				30 * time.Second, 30 * time.Second, 30 * time.Second,
			},
		},
		{
			interval: 8 * time.Second,
			want: []time.Duration{
				16 * time.Second, 24 * time.Second, 30 * time.Second, 30 * time.Second,
				30 * time.Second, 30 * time.Second, 30 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			b := NewBackoff(noJitter)
			st := PollRunState{PollingInterval: tt.interval, ConsecutiveUnknownErrors: 3}

			var got []time.Duration
			for k := 1; k < maxNetworkErrors; k++ {
				d := b.Next(CategoryNetworkError, true, st)
				if d.Terminal {
					t.Fatalf("network error %d: unexpected terminal outcome", k)
				}
				if d.State.ConsecutiveUnknownErrors != 0 {
					t.Fatalf("network error %d: unknown counter not reset", k)
				}
				got = append(got, d.Delay)
				st = d.State
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("delays mismatch (-want +got):\n%s", diff)
			}

			d := b.Next(CategoryNetworkError, true, st)
			if !d.Terminal || d.Outcome != OutcomeNetworkFailure {
				t.Errorf("8th network error: got terminal=%v outcome=%v", d.Terminal, d.Outcome)
			}
		})
	}
}

func TestBackoffUnknownResponse(t *testing.T) {
	b := NewBackoff(noJitter)
	st := PollRunState{PollingInterval: 5 * time.Second, ConsecutiveNetworkErrors: 2}

	// min(interval*(1+k/2), 20s) with integer division
	want := []time.Duration{5 * time.Second, 10 * time.Second, 10 * time.Second, 15 * time.Second}
	var got []time.Duration
	for k := 1; k < maxUnknownErrors; k++ {
		d := b.Next(CategoryUnknown, false, st)
		if d.Terminal {
			t.Fatalf("unknown error %d: unexpected terminal outcome", k)
		}
		got = append(got, d.Delay)
		st = d.State
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delays mismatch (-want +got):\n%s", diff)
	}
	if st.ConsecutiveNetworkErrors != 2 {
		t.Errorf("network counter = %d, want it untouched", st.ConsecutiveNetworkErrors)
	}

	d := b.Next(CategoryUnknown, false, st)
	if !d.Terminal || d.Outcome != OutcomeUnknownFailure {
		t.Errorf("5th unknown error: got terminal=%v outcome=%v", d.Terminal, d.Outcome)
	}
}

func TestBackoffUnknownResponseCap(t *testing.T) {
	b := NewBackoff(noJitter)
	st := PollRunState{PollingInterval: 12 * time.Second, ConsecutiveUnknownErrors: 3}

	d := b.Next(CategoryUnknown, false, st)
	if d.Delay != 20*time.Second {
		t.Errorf("delay = %v, want 20s cap", d.Delay)
	}
}

func TestBackoffUnknownTransport(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{5 * time.Second, 10 * time.Second},
		{7 * time.Second, 14 * time.Second},
		{10 * time.Second, 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			b := NewBackoff(noJitter)
			st := PollRunState{PollingInterval: tt.interval}
			for k := 1; k < maxUnknownErrors; k++ {
				d := b.Next(CategoryUnknown, true, st)
				if d.Terminal {
					t.Fatalf("transport error %d: unexpected terminal outcome", k)
				}
				if d.Delay != tt.want {
					t.Fatalf("transport error %d: delay = %v, want %v", k, d.Delay, tt.want)
				}
				st = d.State
			}
			if d := b.Next(CategoryUnknown, true, st); d.Outcome != OutcomeUnknownFailure || !d.Terminal {
				t.Errorf("5th transport error: got terminal=%v outcome=%v", d.Terminal, d.Outcome)
			}
		})
	}
}

func TestBackoffImmediateTerminals(t *testing.T) {
	tests := []struct {
		category Category
		want     OutcomeKind
	}{
		{CategoryAccessDenied, OutcomeDenied},
		{CategoryExpired, OutcomeExpired},
		{CategoryInvalidCode, OutcomeInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.category.String(), func(t *testing.T) {
			st := NewPollRunState(testStart(), epoch)
			d := NewBackoff(noJitter).Next(tt.category, false, st)
			if !d.Terminal || d.Outcome != tt.want {
				t.Errorf("Next(%v) = terminal=%v outcome=%v, want %v", tt.category, d.Terminal, d.Outcome, tt.want)
			}
			if diff := cmp.Diff(st, d.State); diff != "" {
				t.Errorf("state changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	b := NewBackoff(nil)
	st := NewPollRunState(testStart(), epoch)

	for i := 0; i < 200; i++ {
		d := b.Next(CategoryAuthorizationPending, false, st)
		if d.Delay < 5*time.Second || d.Delay > 6*time.Second {
			t.Fatalf("pending delay %v outside [5s, 6s]", d.Delay)
		}
		d = b.Next(CategorySlowDown, false, st)
		if d.Delay < 10*time.Second || d.Delay > 13*time.Second {
			t.Fatalf("slow_down delay %v outside [10s, 13s]", d.Delay)
		}
	}
}
