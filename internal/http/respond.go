package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/Clark-Hu/yamdb/internal/auth"
	"github.com/Clark-Hu/yamdb/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type listResponse[T any] struct {
	Count   int64 `json:"count"`
	Results []T   `json:"results"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, r, status, errorResponse{Code: code, Message: message})
}

func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Request body cannot be empty")
	case errors.As(err, &maxBytesError):
		respondError(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Request body too large")
	default:
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

// respondServiceError maps service errors onto the error envelope. Anything
// not recognised is logged and reported as a 500.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Request validation failed",
			Details: verr.Fields,
		})
	case errors.Is(err, domain.ErrValidation):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrScoreRange):
		respondJSON(w, r, http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: domain.ErrScoreRange.Error(),
			Details: map[string]string{"score": domain.ErrScoreRange.Error()},
		})
	case errors.Is(err, domain.ErrForbidden):
		if auth.ActorFromContext(r.Context()) == nil {
			respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided")
			return
		}
		respondError(w, r, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, domain.ErrDuplicateReview):
		respondError(w, r, http.StatusConflict, "DUPLICATE_REVIEW", domain.ErrDuplicateReview.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, r, http.StatusConflict, "CONFLICT", "Resource already exists")
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
