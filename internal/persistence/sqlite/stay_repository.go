package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/hotel-frontdesk/internal/persistence"
)

// StayRepository implements persistence.StayRepository using SQLite
type StayRepository struct {
	q querier
}

// NewStayRepository creates a stay repository on a pool or transaction.
func NewStayRepository(q querier) *StayRepository {
	return &StayRepository{q: q}
}

// FindInRange returns stays overlapping [from, to) with their guests. Stays,
// guests and overrides are each loaded with a single query.
func (r *StayRepository) FindInRange(ctx context.Context, from, to time.Time) ([]persistence.Stay, error) {
	const where = `s.check_in < ? AND (s.check_out IS NULL OR s.check_out > ?)`
	args := []any{formatDay(to), formatDay(from)}

	stays, err := r.listStays(ctx, `
		SELECT s.id, s.room_number, s.check_in, s.check_out, s.nightly_rate, s.created_at
		FROM stays s
		WHERE `+where+`
		ORDER BY s.check_in ASC, s.id ASC`, args...)
	if err != nil || len(stays) == 0 {
		return stays, err
	}

	index := make(map[string]int, len(stays))
	for i, stay := range stays {
		index[stay.ID] = i
	}

	guestRows, err := r.q.QueryContext(ctx, `
		SELECT g.stay_id, g.document_type, g.document_number, g.name, g.responsible
		FROM stay_guests g
		JOIN stays s ON s.id = g.stay_id
		WHERE `+where+`
		ORDER BY g.stay_id, g.position`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	if err := forEachGuest(guestRows, func(stayID string, guest persistence.StayGuest) {
		if i, ok := index[stayID]; ok {
			stays[i].Guests = append(stays[i].Guests, guest)
		}
	}); err != nil {
		return nil, err
	}

	overrideRows, err := r.q.QueryContext(ctx, `
		SELECT o.stay_id, o.reservation_id
		FROM stay_reservation_overrides o
		JOIN stays s ON s.id = o.stay_id
		WHERE `+where+`
		ORDER BY o.stay_id, o.reservation_id`, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer overrideRows.Close()
	for overrideRows.Next() {
		var stayID, reservationID string
		if err := overrideRows.Scan(&stayID, &reservationID); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		if i, ok := index[stayID]; ok {
			stays[i].OverriddenReservationIDs = append(stays[i].OverriddenReservationIDs, reservationID)
		}
	}
	if err := overrideRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overrides: %w", err)
	}

	return stays, nil
}

// ExistsOverlap reports whether a stay for the room overlaps [from, to).
func (r *StayRepository) ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM stays s WHERE s.room_number = ? AND ` + stayOverlap(to) + `)`
	args := append([]any{roomNumber}, overlapArgs(from, to)...)

	var exists int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists == 1, nil
}

// IsGuestActiveElsewhere reports whether the guest is on a stay overlapping [from, to).
func (r *StayRepository) IsGuestActiveElsewhere(ctx context.Context, guest persistence.GuestIdentity, from time.Time, to *time.Time, accompanyingOnly bool) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM stay_guests g
			JOIN stays s ON s.id = g.stay_id
			WHERE g.document_type = ? AND g.document_number = ? AND ` + stayOverlap(to)
	if accompanyingOnly {
		query += ` AND g.responsible = 0`
	}
	query += `)`
	args := append([]any{guest.DocumentType, guest.DocumentNumber}, overlapArgs(from, to)...)

	var exists int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists == 1, nil
}

// CreateStay inserts the stay with its guests and override links.
func (r *StayRepository) CreateStay(ctx context.Context, stay persistence.Stay) (string, error) {
	if stay.ID == "" {
		return "", persistence.ErrConstraintViolation
	}

	var checkOut sql.NullString
	if stay.CheckOut != nil {
		checkOut = sql.NullString{String: formatDay(*stay.CheckOut), Valid: true}
	}
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO stays (id, room_number, check_in, check_out, nightly_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stay.ID,
		stay.RoomNumber,
		formatDay(stay.CheckIn),
		checkOut,
		stay.NightlyRate,
		formatTimestamp(stay.CreatedAt),
	); err != nil {
		return "", fmt.Errorf("insert stay %s: %w", stay.ID, mapError(err))
	}

	for i, guest := range stay.Guests {
		responsible := 0
		if guest.Responsible {
			responsible = 1
		}
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO stay_guests (stay_id, position, document_type, document_number, name, responsible)
			VALUES (?, ?, ?, ?, ?, ?)`,
			stay.ID, i, guest.DocumentType, guest.DocumentNumber, guest.Name, responsible,
		); err != nil {
			return "", fmt.Errorf("insert guest for stay %s: %w", stay.ID, mapError(err))
		}
	}

	for _, reservationID := range stay.OverriddenReservationIDs {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO stay_reservation_overrides (stay_id, reservation_id) VALUES (?, ?)`,
			stay.ID, reservationID,
		); err != nil {
			return "", fmt.Errorf("insert override for stay %s: %w", stay.ID, mapError(err))
		}
	}

	return stay.ID, nil
}

// GetStay loads one stay with its guests and overrides.
func (r *StayRepository) GetStay(ctx context.Context, id string) (persistence.Stay, error) {
	stays, err := r.listStays(ctx, `
		SELECT s.id, s.room_number, s.check_in, s.check_out, s.nightly_rate, s.created_at
		FROM stays s
		WHERE s.id = ?`, id)
	if err != nil {
		return persistence.Stay{}, err
	}
	if len(stays) == 0 {
		return persistence.Stay{}, persistence.ErrNotFound
	}
	stay := stays[0]

	guestRows, err := r.q.QueryContext(ctx, `
		SELECT stay_id, document_type, document_number, name, responsible
		FROM stay_guests
		WHERE stay_id = ?
		ORDER BY position`, id)
	if err != nil {
		return persistence.Stay{}, mapError(err)
	}
	if err := forEachGuest(guestRows, func(_ string, guest persistence.StayGuest) {
		stay.Guests = append(stay.Guests, guest)
	}); err != nil {
		return persistence.Stay{}, err
	}

	overrideRows, err := r.q.QueryContext(ctx,
		`SELECT reservation_id FROM stay_reservation_overrides WHERE stay_id = ? ORDER BY reservation_id`, id)
	if err != nil {
		return persistence.Stay{}, mapError(err)
	}
	defer overrideRows.Close()
	for overrideRows.Next() {
		var reservationID string
		if err := overrideRows.Scan(&reservationID); err != nil {
			return persistence.Stay{}, fmt.Errorf("failed to scan override: %w", err)
		}
		stay.OverriddenReservationIDs = append(stay.OverriddenReservationIDs, reservationID)
	}
	if err := overrideRows.Err(); err != nil {
		return persistence.Stay{}, fmt.Errorf("failed to iterate overrides: %w", err)
	}
	return stay, nil
}

func stayOverlap(to *time.Time) string {
	if to == nil {
		return `(s.check_out IS NULL OR s.check_out > ?)`
	}
	return `(s.check_out IS NULL OR s.check_out > ?) AND s.check_in < ?`
}

func overlapArgs(from time.Time, to *time.Time) []any {
	args := []any{formatDay(from)}
	if to != nil {
		args = append(args, formatDay(*to))
	}
	return args
}

func (r *StayRepository) listStays(ctx context.Context, query string, args ...any) ([]persistence.Stay, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var stays []persistence.Stay
	for rows.Next() {
		var (
			stay                     persistence.Stay
			checkInStr, createdAtStr string
			checkOut                 sql.NullString
		)
		if err := rows.Scan(&stay.ID, &stay.RoomNumber, &checkInStr, &checkOut, &stay.NightlyRate, &createdAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan stay: %w", err)
		}
		if stay.CheckIn, err = parseDay(checkInStr); err != nil {
			return nil, err
		}
		if checkOut.Valid {
			out, err := parseDay(checkOut.String)
			if err != nil {
				return nil, err
			}
			stay.CheckOut = &out
		}
		if stay.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
			return nil, err
		}
		stays = append(stays, stay)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stays: %w", err)
	}
	return stays, nil
}

func forEachGuest(rows *sql.Rows, fn func(stayID string, guest persistence.StayGuest)) error {
	defer rows.Close()
	for rows.Next() {
		var (
			stayID      string
			guest       persistence.StayGuest
			responsible int
		)
		if err := rows.Scan(&stayID, &guest.DocumentType, &guest.DocumentNumber, &guest.Name, &responsible); err != nil {
			return fmt.Errorf("failed to scan stay guest: %w", err)
		}
		guest.Responsible = responsible == 1
		fn(stayID, guest)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate stay guests: %w", err)
	}
	return nil
}
