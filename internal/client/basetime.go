package client

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// KST is the provider's reference zone (UTC+9, no DST).
var KST = time.FixedZone("KST", 9*60*60)

const (
	baseDateLayout = "20060102"
	baseTimeLayout = "1504"

	// publishLag is how long the provider takes to publish a slot.
	publishLag = 10 * time.Minute
)

// BaseTimeAligner picks the most recent observation slot the provider has
// published for the current moment.
type BaseTimeAligner struct {
	clock clockwork.Clock
	loc   *time.Location
}

// NewBaseTimeAligner returns an aligner reading clock in loc. A nil loc means KST.
func NewBaseTimeAligner(clock clockwork.Clock, loc *time.Location) *BaseTimeAligner {
	if loc == nil {
		loc = KST
	}
	return &BaseTimeAligner{clock: clock, loc: loc}
}

// Align returns (base_date, base_time) for the aligner's clock.
func (a *BaseTimeAligner) Align() (string, string) {
	return a.AlignAt(a.clock.Now())
}

// AlignAt returns (base_date "YYYYMMDD", base_time "HHMM") for t: ten minutes
// earlier, floored to the 10-minute grid, except that a candidate in the first
// ten minutes of an hour is reported as minute 50 of the previous hour.
func (a *BaseTimeAligner) AlignAt(t time.Time) (string, string) {
	candidate := t.In(a.loc).Add(-publishLag)
	minute := candidate.Minute()
	slot := time.Date(candidate.Year(), candidate.Month(), candidate.Day(),
		candidate.Hour(), minute-minute%10, 0, 0, a.loc)
	if minute < 10 {
		slot = slot.Add(-time.Hour).Add(50 * time.Minute)
	}
	return slot.Format(baseDateLayout), slot.Format(baseTimeLayout)
}
