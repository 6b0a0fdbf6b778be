package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/castaway-league/internal/domain/user"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
	"github.com/riskibarqy/castaway-league/internal/usecase"
)

const maxRequestBodyBytes = 1 << 20

type Handler struct {
	draftService   *usecase.DraftService
	sessionService *usecase.ScoringSessionService
	finalizer      *usecase.ScoringFinalizerService
	scheduler      *usecase.JobScheduler
	caches         map[string]usecase.CacheInvalidator
	logger         *logging.Logger
	validator      *validator.Validate
}

func NewHandler(
	draftService *usecase.DraftService,
	sessionService *usecase.ScoringSessionService,
	finalizer *usecase.ScoringFinalizerService,
	scheduler *usecase.JobScheduler,
	caches map[string]usecase.CacheInvalidator,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		draftService:   draftService,
		sessionService: sessionService,
		finalizer:      finalizer,
		scheduler:      scheduler,
		caches:         caches,
		logger:         logger.Component("httpapi"),
		validator:      validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeBody reads an optional JSON body; an empty body leaves dst untouched.
func (h *Handler) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return h.validateRequest(ctx, dst)
	}

	decoder := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", usecase.ErrInvalidInput, err)
	}
	return h.validateRequest(ctx, dst)
}

func requirePrincipal(ctx context.Context) (user.Principal, error) {
	principal, ok := principalFromContext(ctx)
	if !ok || strings.TrimSpace(principal.UserID) == "" {
		return user.Principal{}, fmt.Errorf("%w: missing principal", usecase.ErrUnauthorized)
	}
	return principal, nil
}

func actorID(ctx context.Context) string {
	principal, ok := principalFromContext(ctx)
	if !ok {
		return "system"
	}
	return principal.UserID
}
