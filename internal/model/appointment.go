package model

import (
	"errors"
	"time"
)

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

const (
	ModeInPerson   = "in_person"
	ModeTelehealth = "telehealth"
)

var ServiceTypes = map[string]bool{
	"consultation": true,
	"therapy":      true,
	"assessment":   true,
	"workshop":     true,
}

const (
	MinSlot   = 15 * time.Minute
	MaxSlot   = 4 * time.Hour
	pastGrace = 5 * time.Minute
)

var (
	ErrEndBeforeStart = errors.New("end must be after start")
	ErrInPast         = errors.New("cannot book in the past")
	ErrSlotLength     = errors.New("appointment must be between 15 minutes and 4 hours")
)

var transitions = map[string]map[string]bool{
	StatusScheduled: {StatusConfirmed: true, StatusCancelled: true, StatusCompleted: true, StatusNoShow: true},
	StatusConfirmed: {StatusCancelled: true, StatusCompleted: true, StatusNoShow: true},
}

// CanTransition reports whether an appointment may move from one status to another.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// Active reports whether the appointment still holds its slot.
func (a *Appointment) Active() bool {
	return a.Status == StatusScheduled || a.Status == StatusConfirmed
}

// ValidateSlot checks a requested [start, end) window against now.
func ValidateSlot(start, end, now time.Time) error {
	if !end.After(start) {
		return ErrEndBeforeStart
	}
	if start.Before(now.Add(-pastGrace)) {
		return ErrInPast
	}
	if d := end.Sub(start); d < MinSlot || d > MaxSlot {
		return ErrSlotLength
	}
	return nil
}

// Overlaps treats windows as half-open, so touching endpoints do not collide.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
