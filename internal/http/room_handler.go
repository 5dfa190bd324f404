package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/hotel-frontdesk/internal/application"
)

type roomService interface {
	CreateRoom(ctx context.Context, input application.RoomInput) (application.Room, error)
	UpdateRoom(ctx context.Context, number string, input application.RoomInput) (application.Room, error)
	GetRoom(ctx context.Context, number string) (application.Room, error)
	ListRooms(ctx context.Context) ([]application.Room, error)
}

// RoomHandler serves the room directory.
type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req roomRequest
	if err := bindJSON(c, &req); err != nil {
		h.log(ctx, "Create", "error_kind", "bad_request").WarnContext(ctx, "invalid room request", "error", err)
		h.fail(c, err)
		return
	}

	logger := h.log(ctx, "Create", "room_number", req.Number)
	room, err := h.service.CreateRoom(ctx, req.toInput())
	if err != nil {
		logger.ErrorContext(ctx, "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "room created")
	h.responder.writeJSON(c, http.StatusCreated, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()

	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		h.responder.writeError(c, http.StatusBadRequest, errInvalidRoomNo)
		return
	}

	var req roomRequest
	req.Number = number
	if err := bindJSON(c, &req); err != nil {
		h.log(ctx, "Update", "room_number", number, "error_kind", "bad_request").WarnContext(ctx, "invalid room update", "error", err)
		h.fail(c, err)
		return
	}

	logger := h.log(ctx, "Update", "room_number", number)
	room, err := h.service.UpdateRoom(ctx, number, req.toInput())
	if err != nil {
		logger.ErrorContext(ctx, "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "room updated")
	h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	number := strings.TrimSpace(c.Param("number"))

	room, err := h.service.GetRoom(ctx, number)
	if err != nil {
		h.log(ctx, "Get", "room_number", number).WarnContext(ctx, "room lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, roomResponse{Room: toRoomDTO(room)})
}

func (h *RoomHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.log(ctx, "List")

	rooms, err := h.service.ListRooms(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.With("result_count", len(rooms)).DebugContext(ctx, "rooms listed")
	h.responder.writeJSON(c, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(rooms)})
}

func (h *RoomHandler) fail(c *gin.Context, err error) {
	if err == errBadRequestBody {
		h.responder.writeError(c, http.StatusBadRequest, err)
		return
	}
	h.responder.handleServiceError(c, err)
}

type roomRequest struct {
	Number      string `json:"number" validate:"required"`
	Type        string `json:"type"`
	Capacity    int    `json:"capacity" validate:"gt=0"`
	NightlyRate int64  `json:"nightly_rate" validate:"gte=0"`
	Maintenance string `json:"maintenance" validate:"omitempty,oneof=IN_SERVICE OUT_OF_SERVICE"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Number:      strings.TrimSpace(r.Number),
		Type:        strings.TrimSpace(r.Type),
		Capacity:    r.Capacity,
		NightlyRate: r.NightlyRate,
		Maintenance: application.MaintenanceState(r.Maintenance),
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	Number      string `json:"number"`
	Type        string `json:"type,omitempty"`
	Capacity    int    `json:"capacity"`
	NightlyRate int64  `json:"nightly_rate"`
	Maintenance string `json:"maintenance"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func toRoomDTO(room application.Room) roomDTO {
	return roomDTO{
		Number:      room.Number,
		Type:        room.Type,
		Capacity:    room.Capacity,
		NightlyRate: room.NightlyRate,
		Maintenance: string(room.Maintenance),
		CreatedAt:   room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toRoomDTOs(rooms []application.Room) []roomDTO {
	out := make([]roomDTO, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoomDTO(room))
	}
	return out
}
