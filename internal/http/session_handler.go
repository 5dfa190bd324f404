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

type sessionService interface {
	Open(ctx context.Context) (application.WorkingSession, error)
	Get(ctx context.Context, id string) (application.WorkingSession, error)
	Stage(ctx context.Context, sessionID string, sel application.Selection) (application.Selection, error)
	Unstage(ctx context.Context, sessionID, selectionID string) error
	Discard(ctx context.Context, sessionID string) error
	Commit(ctx context.Context, sessionID string) (application.CommitResult, error)
}

// SessionHandler exposes working sessions: staging, unstaging, discarding and
// committing selections.
type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

func (h *SessionHandler) Open(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.service.Open(ctx)
	if err != nil {
		h.log(ctx, "Open").ErrorContext(ctx, "session open failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func (h *SessionHandler) Discard(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.service.Discard(ctx, c.Param("id")); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *SessionHandler) Stage(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")

	var req selectionRequest
	if err := bindJSON(c, &req); err != nil {
		h.log(ctx, "Stage", "session_id", sessionID, "error_kind", "bad_request").WarnContext(ctx, "invalid selection request", "error", err)
		if err == errBadRequestBody {
			h.responder.writeError(c, http.StatusBadRequest, err)
			return
		}
		h.responder.handleServiceError(c, err)
		return
	}
	sel, err := req.toSelection()
	if err != nil {
		h.responder.writeError(c, http.StatusBadRequest, err)
		return
	}

	staged, err := h.service.Stage(ctx, sessionID, sel)
	if err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusCreated, selectionResponse{Selection: toSelectionDTO(staged)})
}

func (h *SessionHandler) Unstage(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.service.Unstage(ctx, c.Param("id"), c.Param("selectionID")); err != nil {
		h.responder.handleServiceError(c, err)
		return
	}
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

func (h *SessionHandler) Commit(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := c.Param("id")
	logger := h.log(ctx, "Commit", "session_id", sessionID)

	result, err := h.service.Commit(ctx, sessionID)
	if err != nil {
		logger.WarnContext(ctx, "commit failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "session committed", "created", len(result.CreatedIDs))
	h.responder.writeJSON(c, http.StatusCreated, commitResponse{
		CreatedIDs:     nonNil(result.CreatedIDs),
		ReservationIDs: nonNil(result.ReservationIDs),
		StayIDs:        nonNil(result.StayIDs),
	})
}

type selectionRequest struct {
	Kind                   string          `json:"kind" validate:"required,oneof=reservation stay"`
	RoomNumber             string          `json:"room_number" validate:"required"`
	From                   string          `json:"from" validate:"required,datetime=2006-01-02"`
	To                     *string         `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Responsible            *responsibleDTO `json:"responsible"`
	Guests                 []guestDTO      `json:"guests" validate:"omitempty,dive"`
	NightlyRate            int64           `json:"nightly_rate" validate:"gte=0"`
	AcceptReservedOverride bool            `json:"accept_reserved_override"`
}

type responsibleDTO struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type guestDTO struct {
	DocumentType   string `json:"document_type" validate:"required"`
	DocumentNumber string `json:"document_number" validate:"required"`
	Name           string `json:"name"`
	Responsible    bool   `json:"responsible"`
}

func (r selectionRequest) toSelection() (application.Selection, error) {
	from, err := parseDay(r.From)
	if err != nil {
		return application.Selection{}, err
	}
	to, err := parseOptionalDay(r.To)
	if err != nil {
		return application.Selection{}, err
	}

	sel := application.Selection{
		Kind:                   application.SelectionKind(r.Kind),
		RoomNumber:             strings.TrimSpace(r.RoomNumber),
		From:                   from,
		To:                     to,
		NightlyRate:            r.NightlyRate,
		AcceptReservedOverride: r.AcceptReservedOverride,
	}
	if r.Responsible != nil {
		sel.Responsible = application.ResponsibleParty{
			Name:  strings.TrimSpace(r.Responsible.Name),
			Phone: strings.TrimSpace(r.Responsible.Phone),
		}
	}
	for _, g := range r.Guests {
		sel.Guests = append(sel.Guests, application.Guest{
			DocumentType:   g.DocumentType,
			DocumentNumber: g.DocumentNumber,
			Name:           strings.TrimSpace(g.Name),
			Responsible:    g.Responsible,
		})
	}
	return sel, nil
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type selectionResponse struct {
	Selection selectionDTO `json:"selection"`
}

type commitResponse struct {
	CreatedIDs     []string `json:"created_ids"`
	ReservationIDs []string `json:"reservation_ids"`
	StayIDs        []string `json:"stay_ids"`
}

type sessionDTO struct {
	ID         string         `json:"id"`
	Selections []selectionDTO `json:"selections"`
	CreatedAt  string         `json:"created_at"`
	ExpiresAt  string         `json:"expires_at"`
}

type selectionDTO struct {
	ID                       string          `json:"id"`
	Kind                     string          `json:"kind"`
	RoomNumber               string          `json:"room_number"`
	From                     string          `json:"from"`
	To                       *string         `json:"to"`
	Responsible              *responsibleDTO `json:"responsible,omitempty"`
	Guests                   []guestDTO      `json:"guests,omitempty"`
	NightlyRate              int64           `json:"nightly_rate,omitempty"`
	AcceptReservedOverride   bool            `json:"accept_reserved_override,omitempty"`
	OverriddenReservationIDs []string        `json:"overridden_reservation_ids,omitempty"`
}

func toSessionDTO(s application.WorkingSession) sessionDTO {
	dto := sessionDTO{
		ID:         s.ID,
		Selections: make([]selectionDTO, 0, len(s.Selections)),
		CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  s.ExpiresAt.UTC().Format(time.RFC3339),
	}
	for _, sel := range s.Selections {
		dto.Selections = append(dto.Selections, toSelectionDTO(sel))
	}
	return dto
}

func toSelectionDTO(sel application.Selection) selectionDTO {
	dto := selectionDTO{
		ID:                       sel.ID,
		Kind:                     string(sel.Kind),
		RoomNumber:               sel.RoomNumber,
		From:                     formatOptionalDay(sel.From),
		To:                       formatDayPtr(sel.To),
		NightlyRate:              sel.NightlyRate,
		AcceptReservedOverride:   sel.AcceptReservedOverride,
		OverriddenReservationIDs: sel.OverriddenReservationIDs,
	}
	if sel.Responsible.Name != "" || sel.Responsible.Phone != "" {
		dto.Responsible = &responsibleDTO{Name: sel.Responsible.Name, Phone: sel.Responsible.Phone}
	}
	for _, g := range sel.Guests {
		dto.Guests = append(dto.Guests, guestDTO{
			DocumentType:   g.DocumentType,
			DocumentNumber: g.DocumentNumber,
			Name:           g.Name,
			Responsible:    g.Responsible,
		})
	}
	return dto
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
