// Package vesting computes how much of a purchase allocation is
// currently unlockable. The computation is a four-phase state machine
// driven purely by elapsed time, with one formula per phase and two
// clamps applied after, so exact-boundary timestamps are testable in
// isolation.
package vesting

import (
	"launchcontrol/internal/engine"
	"launchcontrol/internal/engine/fixedpoint"
)

// Schedule holds the per-auction vesting parameters shared by all
// positions. Fractions are scaled by fixedpoint.Accuracy. Keeping
// instant + initial + full linear release within Accuracy is the
// configurer's responsibility; the engine only clamps at the principal.
type Schedule struct {
	LockPeriod      uint64 // seconds before linear release begins
	VestingPeriod   uint64 // seconds over which linear release completes
	ReleaseInterval uint64 // seconds per release step
	ReleaseRate     uint64 // fraction unlocked per step
	InitialUnlock   uint64 // fraction unlocked at lock end
	InstantUnlock   uint64 // fraction unlocked immediately
}

// Position is one buyer's claim from one purchase event.
type Position struct {
	TotalAmount     uint64
	WithdrawnAmount uint64
	StartTime       int64
}

// Phase of a position at a point in time.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLocked
	PhaseReleasing
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLocked:
		return "locked"
	case PhaseReleasing:
		return "releasing"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// PhaseAt returns the vesting phase of p at now. The lock-end boundary
// belongs to the locked phase and the vesting-end boundary to the
// releasing phase.
func PhaseAt(p Position, s Schedule, now int64) Phase {
	if p.StartTime == 0 || p.TotalAmount == 0 {
		return PhaseUninitialized
	}
	lockEnd := p.StartTime + int64(s.LockPeriod)
	if now <= lockEnd {
		return PhaseLocked
	}
	if now <= lockEnd+int64(s.VestingPeriod) {
		return PhaseReleasing
	}
	return PhaseCompleted
}

// Unlockable returns the cumulative amount claimable at now. It is
// monotonic non-decreasing in now and always within
// [WithdrawnAmount, TotalAmount].
func Unlockable(p Position, s Schedule, now int64) (uint64, error) {
	var amount uint64

	switch PhaseAt(p, s, now) {
	case PhaseUninitialized:
		return 0, nil

	case PhaseLocked:
		instant, err := fixedpoint.MulDiv(p.TotalAmount, s.InstantUnlock, fixedpoint.Accuracy)
		if err != nil {
			return 0, err
		}
		amount = instant

	case PhaseReleasing:
		if s.ReleaseInterval == 0 {
			return 0, engine.ErrDivisionByZero
		}
		lockEnd := p.StartTime + int64(s.LockPeriod)
		intervals := uint64(now-lockEnd) / s.ReleaseInterval
		perInterval, err := fixedpoint.MulDiv(p.TotalAmount, s.ReleaseRate, fixedpoint.Accuracy)
		if err != nil {
			return 0, err
		}
		linear, err := fixedpoint.MulDiv(intervals, perInterval, 1)
		if err != nil {
			return 0, err
		}
		initial, err := fixedpoint.MulDiv(p.TotalAmount, s.InitialUnlock, fixedpoint.Accuracy)
		if err != nil {
			return 0, err
		}
		instant, err := fixedpoint.MulDiv(p.TotalAmount, s.InstantUnlock, fixedpoint.Accuracy)
		if err != nil {
			return 0, err
		}
		amount = linear + initial + instant

	case PhaseCompleted:
		amount = p.TotalAmount
	}

	// Withdrawals are never reversed, and the claim never exceeds the
	// principal. Order matters: the floor first, then the cap.
	if p.WithdrawnAmount > amount {
		amount = p.WithdrawnAmount
	}
	if amount > p.TotalAmount {
		amount = p.TotalAmount
	}
	return amount, nil
}

// WithdrawableDelta is the amount a withdrawal at now would transfer.
// Zero is a valid result, not an error: repeated withdrawals at the
// same timestamp are no-ops.
func WithdrawableDelta(p Position, s Schedule, now int64) (uint64, error) {
	unlockable, err := Unlockable(p, s, now)
	if err != nil {
		return 0, err
	}
	return unlockable - p.WithdrawnAmount, nil
}
