package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/hotel-frontdesk/internal/persistence"
)

// RoomService validates and persists the room directory, including the
// maintenance state that takes rooms out of service.
type RoomService struct {
	rooms  persistence.RoomRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewRoomService constructs a room service with the provided dependencies.
func NewRoomService(rooms persistence.RoomRepository, now func() time.Time) *RoomService {
	return NewRoomServiceWithLogger(rooms, now, nil)
}

// NewRoomServiceWithLogger constructs a room service with a specified logger.
func NewRoomServiceWithLogger(rooms persistence.RoomRepository, now func() time.Time, logger *slog.Logger) *RoomService {
	if now == nil {
		now = time.Now
	}
	return &RoomService{rooms: rooms, now: now, logger: defaultLogger(logger)}
}

func (s *RoomService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "RoomService", operation, attrs...)
}

// CreateRoom validates input and persists a new room.
func (s *RoomService) CreateRoom(ctx context.Context, input RoomInput) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("RoomService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom", "room_number", input.Number)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room created")
	}()

	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	record := persistence.Room{
		Number:      strings.TrimSpace(input.Number),
		Type:        strings.TrimSpace(input.Type),
		Capacity:    input.Capacity,
		NightlyRate: input.NightlyRate,
		Maintenance: string(maintenanceOrDefault(input.Maintenance)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.rooms.CreateRoom(ctx, record); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = roomFromRecord(record)
	return
}

// UpdateRoom replaces the mutable fields of an existing room. The number in
// the path wins over the number in input.
func (s *RoomService) UpdateRoom(ctx context.Context, number string, input RoomInput) (room Room, err error) {
	if s == nil || s.rooms == nil {
		err = fmt.Errorf("RoomService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "room_number", number)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated", "maintenance", room.Maintenance)
	}()

	input.Number = number
	if vErr := validateRoomInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	var existing persistence.Room
	existing, err = s.rooms.GetRoom(ctx, number)
	if err != nil {
		err = mapRoomRepoError(err)
		return
	}

	existing.Type = strings.TrimSpace(input.Type)
	existing.Capacity = input.Capacity
	existing.NightlyRate = input.NightlyRate
	existing.Maintenance = string(maintenanceOrDefault(input.Maintenance))
	existing.UpdatedAt = s.now()

	if err = s.rooms.UpdateRoom(ctx, existing); err != nil {
		err = mapRoomRepoError(err)
		return
	}

	room = roomFromRecord(existing)
	return
}

// GetRoom returns one room.
func (s *RoomService) GetRoom(ctx context.Context, number string) (Room, error) {
	if s == nil || s.rooms == nil {
		return Room{}, fmt.Errorf("RoomService is not configured")
	}
	record, err := s.rooms.GetRoom(ctx, number)
	if err != nil {
		return Room{}, mapRoomRepoError(err)
	}
	return roomFromRecord(record), nil
}

// ListRooms returns the room directory ordered by number.
func (s *RoomService) ListRooms(ctx context.Context) (rooms []Room, err error) {
	if s == nil || s.rooms == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	}()

	var records []persistence.Room
	records, err = s.rooms.ListRooms(ctx)
	if err != nil {
		return
	}

	rooms = make([]Room, 0, len(records))
	for _, r := range records {
		rooms = append(rooms, roomFromRecord(r))
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Number < rooms[j].Number })
	return
}

func maintenanceOrDefault(state MaintenanceState) MaintenanceState {
	if state == "" {
		return MaintenanceInService
	}
	return state
}
