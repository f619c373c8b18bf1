package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	seasonservice "github.com/Black-And-White-Club/arena-ranking/app/modules/season/application"
	"github.com/Black-And-White-Club/arena-ranking/app/shared"
	"github.com/Black-And-White-Club/arena-ranking/pkg/attr"
	"github.com/Black-And-White-Club/arena-ranking/pkg/results"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds JSON request bodies; uploads use maxUploadBytes.
const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 10 << 20
)

type errorBody struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps a domain failure to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrAlreadyAwarded), errors.Is(err, shared.ErrInvalidConfirmation):
		return http.StatusConflict
	case errors.Is(err, shared.ErrOCRUnsupported), errors.Is(err, seasonservice.ErrSchedulingDisabled):
		return http.StatusNotImplemented
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handlers) failure(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Error: err.Error()}
	var ve *shared.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	writeJSON(w, statusFor(err), body)
}

// internal logs an infrastructure error and hides it from the client.
func (h *Handlers) internal(w http.ResponseWriter, r *http.Request, op string, err error) {
	reqID := middleware.GetReqID(r.Context())
	h.logger.ErrorContext(r.Context(), "HTTP request failed",
		attr.String("operation", op),
		attr.String("request_id", reqID),
		attr.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", RequestID: reqID})
}

// respond writes the success side of an operation result with status, or maps its failure.
func respond[S any](h *Handlers, w http.ResponseWriter, r *http.Request, op string, status int, res results.OperationResult[S, error], err error) {
	if err != nil {
		h.internal(w, r, op, err)
		return
	}
	if res.IsFailure() {
		h.failure(w, r, res.FailureErr())
		return
	}
	writeJSON(w, status, res.Unwrap())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "unreadable upload")
		return nil, false
	}
	return data, true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return id, true
}

func limitParam(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func logAttrs(r *http.Request) []slog.Attr {
	return []slog.Attr{
		attr.String("method", r.Method),
		attr.String("path", r.URL.Path),
		attr.String("actor", Actor(r.Context())),
	}
}
