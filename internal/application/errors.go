package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/hotel-frontdesk/internal/occupancy"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when creating a resource whose key is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrSessionNotFound is returned for unknown, expired or discarded working sessions.
	ErrSessionNotFound = errors.New("application: working session not found")
	// ErrCommitConflict is matched by every *CommitError.
	ErrCommitConflict = errors.New("application: commit conflict")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// AvailabilityError reports a business rule that rejected a candidate selection.
type AvailabilityError struct {
	RoomNumber string
	Reason     occupancy.Reason
	// Day is the first blocking day when the grid produced the rejection.
	Day time.Time
	// ConflictWith is the blocking stay, reservation or staged selection id.
	ConflictWith string
	// Guest is set for guest assignment rejections.
	Guest string
	// RequiresOverride marks a check-in that only conflicts with live reservations.
	RequiresOverride         bool
	OverriddenReservationIDs []string
}

func (e *AvailabilityError) Error() string {
	msg := fmt.Sprintf("room %s unavailable: %s", e.RoomNumber, e.Reason)
	if e.Guest != "" {
		msg += " (guest " + e.Guest + ")"
	}
	if e.RequiresOverride {
		msg += " (reservation override required)"
	}
	return msg
}

// SelectionConflict identifies one selection that failed re-validation at commit.
type SelectionConflict struct {
	Index       int
	SelectionID string
	RoomNumber  string
	Reason      occupancy.Reason
	Detail      string
}

// CommitError is returned when one or more selections conflicted with the
// live store. Nothing from the batch was persisted.
type CommitError struct {
	Conflicts []SelectionConflict
}

func (e *CommitError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("#%d %s room %s: %s", c.Index, c.SelectionID, c.RoomNumber, c.Reason))
	}
	return "commit rejected: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrCommitConflict.
func (e *CommitError) Unwrap() error {
	return ErrCommitConflict
}
