package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "castaway-league"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(ctx, err)
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: err.Error(),
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  mapped.Reason,
					Message: err.Error(),
				},
			},
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	const msg = "internal server error"

	writeJSON(ctx, w, http.StatusInternalServerError, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    http.StatusInternalServerError,
			Message: msg,
			Status:  "INTERNAL",
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  "INTERNAL",
					Message: msg,
				},
			},
		},
	})
}

func mapError(ctx context.Context, err error) mappedError {
	ctx, span := startSpan(ctx, "httpapi.mapError")
	defer span.End()

	// Specific kinds first: they also match their broad category.
	switch {
	case errors.Is(err, usecase.ErrNotYourTurn):
		return mappedError{HTTPStatus: http.StatusForbidden, Reason: "NOT_YOUR_TURN", Status: "PERMISSION_DENIED"}
	case errors.Is(err, usecase.ErrCastawayTaken):
		return mappedError{HTTPStatus: http.StatusBadRequest, Reason: "CASTAWAY_TAKEN", Status: "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrAlreadyFinalized):
		return mappedError{HTTPStatus: http.StatusConflict, Reason: "ALREADY_FINALIZED", Status: "ABORTED"}
	case errors.Is(err, usecase.ErrLeagueNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "LEAGUE_NOT_FOUND", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrEpisodeNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "EPISODE_NOT_FOUND", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrCastawayNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "CASTAWAY_NOT_FOUND", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrJobNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "JOB_NOT_FOUND", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{HTTPStatus: http.StatusBadRequest, Reason: "VALIDATION_ERROR", Status: "INVALID_ARGUMENT"}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{HTTPStatus: http.StatusNotFound, Reason: "NOT_FOUND", Status: "NOT_FOUND"}
	case errors.Is(err, usecase.ErrConflict):
		return mappedError{HTTPStatus: http.StatusConflict, Reason: "CONFLICT", Status: "FAILED_PRECONDITION"}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{HTTPStatus: http.StatusUnauthorized, Reason: "UNAUTHORIZED", Status: "UNAUTHENTICATED"}
	case errors.Is(err, usecase.ErrForbidden):
		return mappedError{HTTPStatus: http.StatusForbidden, Reason: "FORBIDDEN", Status: "PERMISSION_DENIED"}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{HTTPStatus: http.StatusServiceUnavailable, Reason: "DEPENDENCY_UNAVAILABLE", Status: "UNAVAILABLE"}
	default:
		return mappedError{HTTPStatus: http.StatusInternalServerError, Reason: "INTERNAL", Status: "INTERNAL"}
	}
}
