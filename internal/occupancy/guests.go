package occupancy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidGuests is returned for structurally invalid guest lists.
var ErrInvalidGuests = errors.New("occupancy: invalid guest list")

// GuestIdentity identifies a person by identity document.
type GuestIdentity struct {
	DocumentType   string
	DocumentNumber string
}

// NewGuestIdentity trims and upper-cases both parts so that equal documents compare equal.
func NewGuestIdentity(docType, docNumber string) GuestIdentity {
	return GuestIdentity{
		DocumentType:   strings.ToUpper(strings.TrimSpace(docType)),
		DocumentNumber: strings.ToUpper(strings.TrimSpace(docNumber)),
	}
}

// Normalized returns the canonical form of the identity.
func (g GuestIdentity) Normalized() GuestIdentity {
	return NewGuestIdentity(g.DocumentType, g.DocumentNumber)
}

// IsZero reports whether either half of the identity is missing.
func (g GuestIdentity) IsZero() bool {
	n := g.Normalized()
	return n.DocumentType == "" || n.DocumentNumber == ""
}

func (g GuestIdentity) String() string {
	n := g.Normalized()
	return n.DocumentType + " " + n.DocumentNumber
}

// StayGuest is one occupant of a stay.
type StayGuest struct {
	Identity    GuestIdentity
	Name        string
	Responsible bool
}

// CandidateStay is a stay that has not been persisted yet.
type CandidateStay struct {
	RoomNumber string
	Period     Interval
	Guests     []StayGuest
}

// GuestDecision is the outcome of ValidateGuestAssignment.
type GuestDecision struct {
	Allowed bool
	Reason  Reason
	// Guest is the identity that caused the rejection.
	Guest GuestIdentity
	// ConflictWith is the id of the other stay for GUEST_DOUBLE_BOOKED.
	ConflictWith string
}

// CheckGuestList validates the structure of a guest list: at least one guest,
// exactly one responsible and no blank documents.
func CheckGuestList(guests []StayGuest) error {
	if len(guests) == 0 {
		return fmt.Errorf("%w: at least one guest is required", ErrInvalidGuests)
	}
	responsible := 0
	for i, guest := range guests {
		if guest.Identity.IsZero() {
			return fmt.Errorf("%w: guest %d has no identity document", ErrInvalidGuests, i)
		}
		if guest.Responsible {
			responsible++
		}
	}
	if responsible != 1 {
		return fmt.Errorf("%w: exactly one responsible guest is required, got %d", ErrInvalidGuests, responsible)
	}
	return nil
}

// ValidateGuestAssignment checks a candidate stay against the other stays
// that overlap it.
//
// An accompanying guest may not appear in any role on another overlapping
// stay. The candidate's responsible guest may hold other rooms as
// responsible, but not as an accompanying occupant. Within the candidate each
// identity appears once, and the head count must fit the room.
func ValidateGuestAssignment(candidate CandidateStay, room Room, others []Stay) (GuestDecision, error) {
	if err := CheckGuestList(candidate.Guests); err != nil {
		return GuestDecision{}, err
	}
	period := normalise(candidate.Period)
	if !period.Valid() {
		return GuestDecision{Reason: ReasonInvalidRange}, nil
	}

	for _, guest := range candidate.Guests {
		id := guest.Identity.Normalized()
		for _, other := range others {
			if !normalise(other.Period).Overlaps(period) {
				continue
			}
			for _, occupant := range other.Guests {
				if occupant.Identity.Normalized() != id {
					continue
				}
				if guest.Responsible && occupant.Responsible {
					continue
				}
				return GuestDecision{Reason: ReasonGuestDoubleBook, Guest: id, ConflictWith: other.ID}, nil
			}
		}
	}

	seen := make(map[GuestIdentity]struct{}, len(candidate.Guests))
	for _, guest := range candidate.Guests {
		id := guest.Identity.Normalized()
		if _, dup := seen[id]; dup {
			return GuestDecision{Reason: ReasonDuplicateGuest, Guest: id}, nil
		}
		seen[id] = struct{}{}
	}

	if len(candidate.Guests) > room.Capacity {
		return GuestDecision{Reason: ReasonCapacityExceeded}, nil
	}

	return GuestDecision{Allowed: true}, nil
}
