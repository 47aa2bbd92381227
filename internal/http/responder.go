package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/logging"
)

var (
	errBadRequestBody   = errors.New("無効なリクエスト形式です。")
	errInvalidTimestamp = errors.New("日時は RFC 3339 形式で指定してください。")
	errInvalidDate      = errors.New("日付は YYYY-MM-DD 形式で指定してください。")
	errMissingWindow    = errors.New("start と end、または date を指定してください。")
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
	ctx := c.Request.Context()
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(c, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(c *gin.Context, err error) {
	if err == nil {
		r.writeError(c, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var conflict *booking.ConflictError
	switch {
	case errors.As(err, &conflict):
		r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   "指定された時間帯は既に予約されています。",
			Conflict:  toConflictDTO(conflict),
		})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_CONFLICT",
			Message:   "指定された時間帯は既に予約されています。",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "同じ識別子の予約が既に存在します。",
		})
	case errors.Is(err, application.ErrInvalidRange):
		r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_RANGE",
			Message:   "終了日時は開始日時より後である必要があります。",
		})
	case errors.Is(err, application.ErrInvalidRecurrence):
		r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "INVALID_RECURRENCE",
			Message:   "繰り返し設定が不正です。",
		})
	case errors.Is(err, application.ErrUnauthenticated):
		r.writeJSON(c, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_REQUIRED",
			Message:   "認証が必要です。",
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(c, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(c, http.StatusNotFound, errorResponse{
			ErrorCode: "NOT_FOUND",
			Message:   "指定されたリソースが見つかりません。",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
				ErrorCode: "VALIDATION_FAILED",
				Message:   "入力内容に誤りがあります。",
				Errors:    localizeValidationErrors(vErr),
			})
			return
		}

		ctx := c.Request.Context()
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(c, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
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
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusForbidden:
		return "この操作を実行する権限がありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	default:
		return "サーバー内部でエラーが発生しました。"
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
	case "resource id is required":
		return "リソース ID は必須です。"
	case "booking id is required":
		return "予約 ID は必須です。"
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}

type conflictDTO struct {
	Occurrence    *int      `json:"occurrence,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	WithBookingID string    `json:"with_booking_id,omitempty"`
	WithStart     time.Time `json:"with_start"`
	WithEnd       time.Time `json:"with_end"`
}

func toConflictDTO(err *booking.ConflictError) *conflictDTO {
	dto := &conflictDTO{
		Start:         err.Candidate.Start,
		End:           err.Candidate.End,
		WithBookingID: err.WithBookingID,
		WithStart:     err.With.Start,
		WithEnd:       err.With.End,
	}
	if err.Occurrence >= 0 {
		occurrence := err.Occurrence
		dto.Occurrence = &occurrence
	}
	return dto
}
