package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/hotel-frontdesk/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using SQLite
type ReservationRepository struct {
	q querier
}

// NewReservationRepository creates a reservation repository on a pool or transaction.
func NewReservationRepository(q querier) *ReservationRepository {
	return &ReservationRepository{q: q}
}

const reservationColumns = `id, room_number, from_day, to_day, status, responsible_name, responsible_phone, created_at`

// FindActiveInRange returns ACTIVE reservations overlapping [from, to) in one query.
func (r *ReservationRepository) FindActiveInRange(ctx context.Context, from, to time.Time) ([]persistence.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = ? AND from_day < ? AND to_day > ?
		ORDER BY from_day ASC, id ASC
	`
	return r.list(ctx, query, persistence.ReservationActive, formatDay(to), formatDay(from))
}

// ExistsOverlap reports whether an ACTIVE reservation for the room overlaps [from, to).
func (r *ReservationRepository) ExistsOverlap(ctx context.Context, roomNumber string, from time.Time, to *time.Time) (bool, error) {
	where, args := reservationOverlap(roomNumber, from, to)
	var exists int
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE `+where+`)`, args...).Scan(&exists); err != nil {
		return false, mapError(err)
	}
	return exists == 1, nil
}

// ListOverlapping returns ACTIVE reservations for the room overlapping [from, to).
func (r *ReservationRepository) ListOverlapping(ctx context.Context, roomNumber string, from time.Time, to *time.Time) ([]persistence.Reservation, error) {
	where, args := reservationOverlap(roomNumber, from, to)
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + where + ` ORDER BY from_day ASC, id ASC`
	return r.list(ctx, query, args...)
}

// CreateReservations inserts all reservations and returns their ids in order.
func (r *ReservationRepository) CreateReservations(ctx context.Context, reservations []persistence.Reservation) ([]string, error) {
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	ids := make([]string, 0, len(reservations))
	for _, res := range reservations {
		if res.ID == "" {
			return nil, persistence.ErrConstraintViolation
		}
		status := res.Status
		if status == "" {
			status = persistence.ReservationActive
		}
		if _, err := r.q.ExecContext(ctx, query,
			res.ID,
			res.RoomNumber,
			formatDay(res.From),
			formatDay(res.To),
			status,
			res.ResponsibleName,
			res.ResponsiblePhone,
			formatTimestamp(res.CreatedAt),
		); err != nil {
			return nil, fmt.Errorf("insert reservation %s: %w", res.ID, mapError(err))
		}
		ids = append(ids, res.ID)
	}
	return ids, nil
}

func reservationOverlap(roomNumber string, from time.Time, to *time.Time) (string, []any) {
	where := `room_number = ? AND status = ? AND to_day > ?`
	args := []any{roomNumber, persistence.ReservationActive, formatDay(from)}
	if to != nil {
		where += ` AND from_day < ?`
		args = append(args, formatDay(*to))
	}
	return where, args
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []persistence.Reservation
	for rows.Next() {
		var (
			res                          persistence.Reservation
			fromStr, toStr, createdAtStr string
		)
		if err := rows.Scan(
			&res.ID,
			&res.RoomNumber,
			&fromStr,
			&toStr,
			&res.Status,
			&res.ResponsibleName,
			&res.ResponsiblePhone,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		if res.From, err = parseDay(fromStr); err != nil {
			return nil, err
		}
		if res.To, err = parseDay(toStr); err != nil {
			return nil, err
		}
		if res.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return out, nil
}
