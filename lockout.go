package shelf

import "time"

// LockoutKind tags the three lockout states an account can be in.
type LockoutKind int

const (
	// LockoutNone means the account can authenticate
	LockoutNone LockoutKind = iota
	// LockoutUntil means the account is suspended until a known instant
	LockoutUntil
	// LockoutPermanent means the account is suspended indefinitely
	LockoutPermanent
)

// PermanentLockoutEnd is the persisted sentinel for a permanent lock. The
// column keeps the sentinel so the stored form stays portable; domain code
// only ever sees the tagged Lockout value.
var PermanentLockoutEnd = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Lockout is the tagged lockout state. Until is only meaningful when
// Kind == LockoutUntil.
type Lockout struct {
	Kind  LockoutKind
	Until time.Time
}

// LockoutFromEnd converts the stored lockout-end column into a tagged state.
// A nil end means not locked; the sentinel (or anything at/after it) means
// permanent.
func LockoutFromEnd(end *time.Time) Lockout {
	if end == nil {
		return Lockout{Kind: LockoutNone}
	}
	if !end.Before(PermanentLockoutEnd) {
		return Lockout{Kind: LockoutPermanent}
	}
	return Lockout{Kind: LockoutUntil, Until: *end}
}

// LockoutFor builds a temporary lock ending minutes from now.
func LockoutFor(now time.Time, minutes int) Lockout {
	return Lockout{Kind: LockoutUntil, Until: now.Add(time.Duration(minutes) * time.Minute)}
}

// PermanentLock builds an indefinite lock.
func PermanentLock() Lockout {
	return Lockout{Kind: LockoutPermanent}
}

// End returns the column representation of the state: nil when not locked,
// the sentinel when permanent.
func (l Lockout) End() *time.Time {
	switch l.Kind {
	case LockoutUntil:
		t := l.Until
		return &t
	case LockoutPermanent:
		t := PermanentLockoutEnd
		return &t
	}
	return nil
}

// Active reports whether the lock suspends authentication at the given instant.
// An expired temporary lock is not active.
func (l Lockout) Active(now time.Time) bool {
	switch l.Kind {
	case LockoutPermanent:
		return true
	case LockoutUntil:
		return l.Until.After(now)
	}
	return false
}
