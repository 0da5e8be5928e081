package service

import (
	"fmt"
	"time"

	"github.com/rescuelog/backend/internal/model"
)

// LockoutPolicy locks an account on every Threshold-th consecutive failure, for
// Step multiplied by how many thresholds have been crossed.
type LockoutPolicy struct {
	Threshold int
	Step      time.Duration
	Location  *time.Location
}

func NewLockoutPolicy(threshold int, step time.Duration, timezone string) (LockoutPolicy, error) {
	if threshold <= 0 {
		return LockoutPolicy{}, fmt.Errorf("%w: LOCKOUT_THRESHOLD must be positive", ErrMisconfigured)
	}
	if step <= 0 {
		return LockoutPolicy{}, fmt.Errorf("%w: LOCKOUT_STEP must be positive", ErrMisconfigured)
	}
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return LockoutPolicy{}, fmt.Errorf("%w: invalid LOCKOUT_TIMEZONE", ErrMisconfigured)
		}
		loc = l
	}
	return LockoutPolicy{Threshold: threshold, Step: step, Location: loc}, nil
}

// IsLocked reports whether the account is inside an unexpired lock window.
// An expired window needs no clearing; it is simply ignored.
func (p LockoutPolicy) IsLocked(acct *model.Account, now time.Time) bool {
	return acct.LockUntil != nil && acct.LockUntil.After(now)
}

// LockFor returns the lock window start for the given failure count, or false when
// the count does not trigger a lock.
func (p LockoutPolicy) LockFor(failures int, now time.Time) (time.Time, bool) {
	if failures <= 0 || failures%p.Threshold != 0 {
		return time.Time{}, false
	}
	return now.Add(p.Step * time.Duration(failures/p.Threshold)), true
}

// FormatUnlockTime renders until as a local HH:MM time of day.
func (p LockoutPolicy) FormatUnlockTime(until time.Time) string {
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	return until.In(loc).Format("15:04")
}
