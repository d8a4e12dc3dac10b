package traffic

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newFakeTracker() (*Tracker, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 7, 14, 14, 0, 0, 0, time.UTC))
	return NewTracker(clock), clock
}

func TestRequestCount_Empty(t *testing.T) {
	tr, _ := newFakeTracker()
	if n := tr.RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecordDenied_AndCounts verifies that denials count toward both
// DenialCount and RequestCount.
func TestRecordDenied_AndCounts(t *testing.T) {
	tr, _ := newFakeTracker()
	tr.RecordSuccess()
	tr.RecordDenied()
	tr.RecordDenied()
	if n := tr.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := tr.RequestCount(time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
}

// TestErrorRate_DeniedExcluded verifies that denials do not dilute the
// provider error rate.
func TestErrorRate_DeniedExcluded(t *testing.T) {
	tr, _ := newFakeTracker()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()
	errors, total := tr.ErrorRate(time.Minute)
	if errors != 1 || total != 2 {
		t.Errorf("ErrorRate() = (%d, %d), want (1, 2)", errors, total)
	}
}

// TestWindow_ExpiresOldOutcomes verifies that outcomes older than the window
// no longer count once the clock advances.
func TestWindow_ExpiresOldOutcomes(t *testing.T) {
	tr, clock := newFakeTracker()
	tr.RecordError()
	clock.Advance(30 * time.Second)
	tr.RecordSuccess()
	clock.Advance(45 * time.Second)

	errors, total := tr.ErrorRate(time.Minute)
	if errors != 0 || total != 1 {
		t.Errorf("ErrorRate() = (%d, %d), want (0, 1)", errors, total)
	}
}

// TestPrune_DropsBeyondRetention verifies that outcomes older than the
// retention horizon are discarded on the next write.
func TestPrune_DropsBeyondRetention(t *testing.T) {
	tr, clock := newFakeTracker()
	tr.RecordSuccess()
	clock.Advance(retention + time.Second)
	tr.RecordSuccess()
	if got := len(tr.successTimes); got != 1 {
		t.Errorf("len(successTimes) = %d, want 1 after prune", got)
	}
}

func TestReset(t *testing.T) {
	tr, _ := newFakeTracker()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()
	tr.Reset()
	if n := tr.RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

func TestPackageLevel_UsesDefaultTracker(t *testing.T) {
	Reset()
	defer Reset()
	RecordSuccess()
	RecordError()
	RecordDenied()
	if n := RequestCount(time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
	if n := DenialCount(time.Minute); n != 1 {
		t.Errorf("DenialCount() = %d, want 1", n)
	}
}
