package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/occupancy"
)

type occupancyService interface {
	BuildOccupancyGrid(ctx context.Context, req application.GridRequest) (*occupancy.Grid, error)
	CheckAvailability(ctx context.Context, query application.AvailabilityQuery, staged []application.Selection) (occupancy.Decision, error)
}

// OccupancyHandler serves the occupancy grid and one-off availability checks.
type OccupancyHandler struct {
	service   occupancyService
	responder responder
	logger    *slog.Logger
}

func NewOccupancyHandler(service occupancyService, logger *slog.Logger) *OccupancyHandler {
	base := defaultLogger(logger)
	return &OccupancyHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *OccupancyHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "OccupancyHandler", operation, attrs...)
}

type gridQuery struct {
	From  string `form:"from" validate:"required,datetime=2006-01-02"`
	To    string `form:"to" validate:"required,datetime=2006-01-02"`
	Rooms string `form:"rooms"`
}

func (h *OccupancyHandler) Grid(c *gin.Context) {
	ctx := c.Request.Context()

	var q gridQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validate.Struct(q); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	from, _ := parseDay(q.From)
	to, _ := parseDay(q.To)

	logger := h.log(ctx, "Grid", "from", q.From, "to", q.To)
	grid, err := h.service.BuildOccupancyGrid(ctx, application.GridRequest{
		Start:       from,
		End:         to,
		RoomNumbers: splitList(q.Rooms),
	})
	if err != nil {
		logger.WarnContext(ctx, "grid request failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	h.responder.writeJSON(c, http.StatusOK, toGridResponse(grid))
}

type availabilityQuery struct {
	Room           string `form:"room" validate:"required"`
	From           string `form:"from" validate:"required,datetime=2006-01-02"`
	To             string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Mode           string `form:"mode" validate:"omitempty,oneof=reservation check_in"`
	AcceptReserved bool   `form:"accept_reserved"`
}

func (h *OccupancyHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()

	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if err := validate.Struct(q); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	from, _ := parseDay(q.From)
	to, _ := parseOptionalDay(&q.To)
	mode, ok := parseMode(q.Mode)
	if !ok {
		h.responder.writeError(c, http.StatusBadRequest, errInvalidMode)
		return
	}

	decision, err := h.service.CheckAvailability(ctx, application.AvailabilityQuery{
		RoomNumber:     strings.TrimSpace(q.Room),
		From:           from,
		To:             to,
		Mode:           mode,
		AcceptReserved: q.AcceptReserved,
	}, nil)
	if err != nil {
		h.log(ctx, "Availability", "room_number", q.Room).WarnContext(ctx, "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	h.responder.writeJSON(c, http.StatusOK, toDecisionDTO(decision))
}

func parseMode(value string) (occupancy.Mode, bool) {
	switch strings.TrimSpace(value) {
	case "", "reservation":
		return occupancy.ModeReservation, true
	case "check_in":
		return occupancy.ModeCheckIn, true
	default:
		return occupancy.ModeReservation, false
	}
}

type gridResponse struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Days  []string     `json:"days"`
	Rooms []gridRowDTO `json:"rooms"`
}

type gridRowDTO struct {
	Number string        `json:"number"`
	Cells  []gridCellDTO `json:"cells"`
}

type gridCellDTO struct {
	Day            string   `json:"day"`
	State          string   `json:"state"`
	StayID         string   `json:"stay_id,omitempty"`
	ReservationIDs []string `json:"reservation_ids,omitempty"`
}

func toGridResponse(grid *occupancy.Grid) gridResponse {
	days := grid.Days()
	resp := gridResponse{
		From: occupancy.FormatDay(grid.Start()),
		To:   occupancy.FormatDay(grid.End()),
		Days: make([]string, 0, len(days)),
	}
	for _, day := range days {
		resp.Days = append(resp.Days, occupancy.FormatDay(day))
	}
	for _, number := range grid.Rooms() {
		row, err := grid.Row(number)
		if err != nil {
			continue
		}
		dto := gridRowDTO{Number: number, Cells: make([]gridCellDTO, 0, len(row))}
		for _, cell := range row {
			dto.Cells = append(dto.Cells, gridCellDTO{
				Day:            occupancy.FormatDay(cell.Day),
				State:          string(cell.State),
				StayID:         cell.StayID,
				ReservationIDs: cell.ReservationIDs,
			})
		}
		resp.Rooms = append(resp.Rooms, dto)
	}
	return resp
}

type decisionDTO struct {
	Available                bool     `json:"available"`
	Reason                   string   `json:"reason,omitempty"`
	Message                  string   `json:"message,omitempty"`
	Day                      string   `json:"day,omitempty"`
	ConflictWith             string   `json:"conflict_with,omitempty"`
	RequiresOverride         bool     `json:"requires_override,omitempty"`
	OverriddenReservationIDs []string `json:"overridden_reservation_ids,omitempty"`
}

func toDecisionDTO(d occupancy.Decision) decisionDTO {
	dto := decisionDTO{
		Available:                d.Available,
		Reason:                   string(d.Reason),
		Day:                      formatOptionalDay(d.Day),
		ConflictWith:             d.ConflictWith,
		RequiresOverride:         d.RequiresOverride,
		OverriddenReservationIDs: d.OverriddenReservationIDs,
	}
	if !d.Available {
		dto.Message = reasonMessage(d.Reason, d.RequiresOverride)
	}
	return dto
}
