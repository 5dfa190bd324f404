package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/example/hotel-frontdesk/internal/application"
	"github.com/example/hotel-frontdesk/internal/logging"
	"github.com/example/hotel-frontdesk/internal/occupancy"
)

var (
	errBadRequestBody  = errors.New("無効なリクエスト形式です。")
	errInvalidDay      = errors.New("日付は YYYY-MM-DD 形式で指定してください。")
	errInvalidRoomNo   = errors.New("無効な客室番号です。")
	errInvalidMode     = errors.New("mode には reservation または check_in を指定してください。")
	errRateLimited     = errors.New("リクエストが多すぎます。しばらくしてから再度お試しください。")
	errInternalFailure = errors.New("サーバー内部でエラーが発生しました。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(c *gin.Context, status int, payload any) {
	if status == http.StatusNoContent || payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

func (r responder) writeError(c *gin.Context, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(c.Request.Context()).WarnContext(c.Request.Context(), "request failed", "status", status, "error", err)
	}
	r.writeJSON(c, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(c *gin.Context, err error) {
	if err == nil {
		r.writeError(c, http.StatusInternalServerError, errInternalFailure)
		return
	}

	var (
		vErr      *application.ValidationError
		fieldErrs validator.ValidationErrors
		availErr  *application.AvailabilityError
		commitErr *application.CommitError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.As(err, &fieldErrs):
		r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    translateFieldErrors(fieldErrs),
		})
	case errors.As(err, &availErr):
		r.writeJSON(c, http.StatusConflict, availabilityErrorResponse{
			ErrorCode:                string(availErr.Reason),
			Message:                  reasonMessage(availErr.Reason, availErr.RequiresOverride),
			RoomNumber:               availErr.RoomNumber,
			Day:                      formatOptionalDay(availErr.Day),
			ConflictWith:             availErr.ConflictWith,
			Guest:                    availErr.Guest,
			RequiresOverride:         availErr.RequiresOverride,
			OverriddenReservationIDs: availErr.OverriddenReservationIDs,
		})
	case errors.As(err, &commitErr):
		conflicts := make([]conflictDTO, 0, len(commitErr.Conflicts))
		for _, conflict := range commitErr.Conflicts {
			conflicts = append(conflicts, conflictDTO{
				Index:       conflict.Index,
				SelectionID: conflict.SelectionID,
				RoomNumber:  conflict.RoomNumber,
				Reason:      string(conflict.Reason),
				Message:     reasonMessage(conflict.Reason, false),
				Detail:      conflict.Detail,
			})
		}
		r.writeJSON(c, http.StatusConflict, commitErrorResponse{
			ErrorCode: "COMMIT_CONFLICT",
			Message:   "確定できない選択が含まれているため、何も登録されませんでした。",
			Conflicts: conflicts,
		})
	case errors.Is(err, application.ErrSessionNotFound):
		r.writeJSON(c, http.StatusNotFound, errorResponse{
			ErrorCode: "SESSION_NOT_FOUND",
			Message:   "作業セッションが見つからないか、有効期限が切れています。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(c, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "同じ番号の客室がすでに登録されています。",
		})
	case errors.Is(err, occupancy.ErrInvalidWindow), errors.Is(err, occupancy.ErrOutsideWindow):
		r.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: "INVALID_WINDOW",
			Message:   "表示期間の指定が正しくありません。",
		})
	case errors.Is(err, occupancy.ErrNoRooms):
		r.writeJSON(c, http.StatusNotFound, errorResponse{
			ErrorCode: "NO_ROOMS",
			Message:   "客室が登録されていません。",
		})
	case errors.Is(err, occupancy.ErrInvalidGuests):
		r.writeJSON(c, http.StatusBadRequest, errorResponse{
			ErrorCode: "INVALID_GUESTS",
			Message:   "宿泊者の指定が正しくありません。",
		})
	default:
		r.loggerFor(c.Request.Context()).ErrorContext(c.Request.Context(), "unhandled service error", "error", err)
		r.writeJSON(c, http.StatusInternalServerError, errorResponse{Message: errInternalFailure.Error()})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusTooManyRequests:
		return errRateLimited.Error()
	default:
		return errInternalFailure.Error()
	}
}

func reasonMessage(reason occupancy.Reason, requiresOverride bool) string {
	switch reason {
	case occupancy.ReasonInvalidRange:
		return "期間の指定が正しくありません。"
	case occupancy.ReasonRoomNotFree:
		if requiresOverride {
			return "予約が入っている客室です。予約を上書きしてチェックインする場合は確認してください。"
		}
		return "指定期間に客室が空いていません。"
	case occupancy.ReasonStagedConflict:
		return "同じセッション内の選択と期間が重なっています。"
	case occupancy.ReasonOutOfService:
		return "客室はメンテナンス中です。"
	case occupancy.ReasonGuestDoubleBook:
		return "宿泊者が同じ期間に別の客室に滞在しています。"
	case occupancy.ReasonDuplicateGuest:
		return "同じ宿泊者が重複して指定されています。"
	case occupancy.ReasonCapacityExceeded:
		return "宿泊者数が客室の定員を超えています。"
	case occupancy.ReasonUnknownRoom:
		return "指定された客室は存在しません。"
	default:
		return string(reason)
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "number is required":
		return "客室番号は必須です。"
	case "room number is required":
		return "客室番号は必須です。"
	case "capacity must be positive":
		return "定員は正の整数で指定してください。"
	case "nightly rate must not be negative":
		return "宿泊料金は 0 以上で指定してください。"
	case "maintenance must be IN_SERVICE or OUT_OF_SERVICE":
		return "メンテナンス状態は IN_SERVICE または OUT_OF_SERVICE を指定してください。"
	case "from is required":
		return "開始日は必須です。"
	case "reservations need an end date":
		return "予約には終了日が必要です。"
	case "responsible name is required":
		return "代表者名は必須です。"
	case "guests are recorded at check-in":
		return "宿泊者はチェックイン時に登録します。"
	case "kind must be reservation or stay":
		return "種別は reservation または stay を指定してください。"
	case "at least one selection is required", "nothing staged":
		return "確定する選択がありません。"
	case "at least one guest is required":
		return "宿泊者を 1 名以上指定してください。"
	default:
		switch {
		case strings.HasPrefix(message, "exactly one responsible guest is required"):
			return "代表者となる宿泊者を 1 名だけ指定してください。"
		case strings.HasPrefix(message, "a session holds at most"):
			return "セッションに追加できる選択数の上限に達しました。"
		case strings.HasPrefix(message, "range exceeds"):
			return "期間が長すぎます。"
		case strings.HasSuffix(message, "has no identity document"):
			return "宿泊者の身分証明書を指定してください。"
		}
		return message
	}
}

func translateFieldErrors(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := jsonFieldPath(fe.Namespace())
		switch fe.Tag() {
		case "required":
			out[field] = "必須項目です。"
		case "oneof":
			out[field] = "指定できる値は " + fe.Param() + " です。"
		case "datetime":
			out[field] = errInvalidDay.Error()
		case "gt", "gte", "min":
			out[field] = fe.Param() + " 以上の値を指定してください。"
		default:
			out[field] = "値が正しくありません。"
		}
	}
	return out
}

// jsonFieldPath drops the struct name from a validator namespace.
func jsonFieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type availabilityErrorResponse struct {
	ErrorCode                string   `json:"error_code"`
	Message                  string   `json:"message"`
	RoomNumber               string   `json:"room_number"`
	Day                      string   `json:"day,omitempty"`
	ConflictWith             string   `json:"conflict_with,omitempty"`
	Guest                    string   `json:"guest,omitempty"`
	RequiresOverride         bool     `json:"requires_override,omitempty"`
	OverriddenReservationIDs []string `json:"overridden_reservation_ids,omitempty"`
}

type conflictDTO struct {
	Index       int    `json:"index"`
	SelectionID string `json:"selection_id"`
	RoomNumber  string `json:"room_number"`
	Reason      string `json:"reason"`
	Message     string `json:"message"`
	Detail      string `json:"detail,omitempty"`
}

type commitErrorResponse struct {
	ErrorCode string        `json:"error_code"`
	Message   string        `json:"message"`
	Conflicts []conflictDTO `json:"conflicts"`
}
