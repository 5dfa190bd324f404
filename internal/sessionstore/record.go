package sessionstore

import (
	"time"

	"github.com/example/hotel-frontdesk/internal/application"
)

type sessionRecord struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
	Selections []selectionRecord `json:"selections"`
}

type selectionRecord struct {
	ID                       string        `json:"id"`
	Kind                     string        `json:"kind"`
	RoomNumber               string        `json:"room_number"`
	From                     time.Time     `json:"from"`
	To                       *time.Time    `json:"to,omitempty"`
	ResponsibleName          string        `json:"responsible_name,omitempty"`
	ResponsiblePhone         string        `json:"responsible_phone,omitempty"`
	Guests                   []guestRecord `json:"guests,omitempty"`
	NightlyRate              int64         `json:"nightly_rate,omitempty"`
	AcceptReservedOverride   bool          `json:"accept_reserved_override,omitempty"`
	OverriddenReservationIDs []string      `json:"overridden_reservation_ids,omitempty"`
}

type guestRecord struct {
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Name           string `json:"name"`
	Responsible    bool   `json:"responsible,omitempty"`
}

func fromSession(s application.WorkingSession) sessionRecord {
	rec := sessionRecord{ID: s.ID, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt}
	for _, sel := range s.Selections {
		sr := selectionRecord{
			ID:                       sel.ID,
			Kind:                     string(sel.Kind),
			RoomNumber:               sel.RoomNumber,
			From:                     sel.From,
			To:                       sel.To,
			ResponsibleName:          sel.Responsible.Name,
			ResponsiblePhone:         sel.Responsible.Phone,
			NightlyRate:              sel.NightlyRate,
			AcceptReservedOverride:   sel.AcceptReservedOverride,
			OverriddenReservationIDs: sel.OverriddenReservationIDs,
		}
		for _, g := range sel.Guests {
			sr.Guests = append(sr.Guests, guestRecord(g))
		}
		rec.Selections = append(rec.Selections, sr)
	}
	return rec
}

func (rec sessionRecord) toSession() application.WorkingSession {
	s := application.WorkingSession{ID: rec.ID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}
	for _, sr := range rec.Selections {
		sel := application.Selection{
			ID:                       sr.ID,
			Kind:                     application.SelectionKind(sr.Kind),
			RoomNumber:               sr.RoomNumber,
			From:                     sr.From.UTC(),
			Responsible:              application.ResponsibleParty{Name: sr.ResponsibleName, Phone: sr.ResponsiblePhone},
			NightlyRate:              sr.NightlyRate,
			AcceptReservedOverride:   sr.AcceptReservedOverride,
			OverriddenReservationIDs: sr.OverriddenReservationIDs,
		}
		if sr.To != nil {
			to := sr.To.UTC()
			sel.To = &to
		}
		for _, g := range sr.Guests {
			sel.Guests = append(sel.Guests, application.Guest(g))
		}
		s.Selections = append(s.Selections, sel)
	}
	return s
}
