package sqlite

import (
	"context"
	"fmt"

	"github.com/example/hotel-frontdesk/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite
type RoomRepository struct {
	q querier
}

// NewRoomRepository creates a room repository on a pool or transaction.
func NewRoomRepository(q querier) *RoomRepository {
	return &RoomRepository{q: q}
}

// CreateRoom inserts a new room into the database
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.Number == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO rooms (number, type, capacity, nightly_rate, maintenance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		room.Number,
		room.Type,
		room.Capacity,
		room.NightlyRate,
		maintenanceOrDefault(room.Maintenance),
		formatTimestamp(room.CreatedAt),
		formatTimestamp(room.UpdatedAt),
	)
	return mapError(err)
}

// UpdateRoom updates an existing room in the database
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.Number == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	query := `
		UPDATE rooms
		SET type = ?, capacity = ?, nightly_rate = ?, maintenance = ?, updated_at = ?
		WHERE number = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		room.Type,
		room.Capacity,
		room.NightlyRate,
		maintenanceOrDefault(room.Maintenance),
		formatTimestamp(room.UpdatedAt),
		room.Number,
	)
	if err != nil {
		return mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetRoom retrieves a room by number
func (r *RoomRepository) GetRoom(ctx context.Context, number string) (persistence.Room, error) {
	if number == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}

	query := `
		SELECT number, type, capacity, nightly_rate, maintenance, created_at, updated_at
		FROM rooms
		WHERE number = ?
	`
	room, err := scanRoom(r.q.QueryRowContext(ctx, query, number))
	if err != nil {
		return persistence.Room{}, mapError(err)
	}
	return room, nil
}

// ListRooms returns every room ordered by number
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	query := `
		SELECT number, type, capacity, nightly_rate, maintenance, created_at, updated_at
		FROM rooms
		ORDER BY number ASC
	`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	return rooms, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (persistence.Room, error) {
	var (
		room                   persistence.Room
		createdAtStr, updateAt string
	)
	if err := row.Scan(
		&room.Number,
		&room.Type,
		&room.Capacity,
		&room.NightlyRate,
		&room.Maintenance,
		&createdAtStr,
		&updateAt,
	); err != nil {
		return persistence.Room{}, err
	}

	var err error
	if room.CreatedAt, err = parseTimestamp(createdAtStr); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTimestamp(updateAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func maintenanceOrDefault(state string) string {
	if state == "" {
		return persistence.MaintenanceInService
	}
	return state
}
