package anubis

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/riskibarqy/castaway-league/internal/domain/user"
	"github.com/riskibarqy/castaway-league/internal/platform/cache"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
	"github.com/riskibarqy/castaway-league/internal/platform/resilience"
	"github.com/riskibarqy/castaway-league/internal/usecase"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	adminKeyHeader   = "x-admin-key"
	adminRole        = "admin"
	defaultCacheTTL  = 30 * time.Second
	maxResponseBytes = 1 << 20
)

var errAnubisTransient = errors.New("anubis transient failure")

type CircuitBreakerConfig = resilience.CircuitBreakerConfig

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return resilience.DefaultCircuitBreakerConfig()
}

type Config struct {
	BaseURL        string
	IntrospectPath string
	AdminKey       string
	CacheTTL       time.Duration
	CircuitBreaker CircuitBreakerConfig
}

// Client verifies bearer tokens against the anubis introspection endpoint.
type Client struct {
	httpClient    *http.Client
	introspectURL string
	adminKey      string
	breaker       *resilience.CircuitBreaker
	tokens        *cache.Store
	flights       resilience.SingleFlight
	logger        *logging.Logger
}

func NewClient(httpClient *http.Client, cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	client := &Client{
		httpClient:    httpClient,
		introspectURL: buildURL(cfg.BaseURL, cfg.IntrospectPath),
		adminKey:      strings.TrimSpace(cfg.AdminKey),
		tokens:        cache.NewStore(ttl),
		logger:        logger.Component("anubis"),
	}
	if cfg.CircuitBreaker.Enabled {
		breakerCfg := normalizeCircuitBreakerConfig(cfg.CircuitBreaker)
		client.breaker = resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq)
	}
	return client
}

func (c *Client) VerifyAccessToken(ctx context.Context, token string) (user.Principal, error) {
	ctx, span := otel.Tracer("castaway-league/anubis").Start(ctx, "anubis.Client.VerifyAccessToken")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "token is required")
	}

	key := hashToken(token)
	if cached, ok := c.tokens.Get(ctx, key); ok {
		span.SetAttributes(attribute.Bool("anubis.cache_hit", true))
		return cached.(user.Principal), nil
	}

	value, err, _ := c.flights.Do(key, func() (any, error) {
		return c.introspectGuarded(ctx, token)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, errAnubisTransient) || errors.Is(err, resilience.ErrCircuitOpen) {
			return user.Principal{}, errors.Wrapf(usecase.ErrDependencyUnavailable, "verify access token: %v", err)
		}
		return user.Principal{}, err
	}

	principal := value.(user.Principal)
	c.tokens.Set(ctx, key, principal)
	return principal, nil
}

func (c *Client) introspectGuarded(ctx context.Context, token string) (user.Principal, error) {
	if c.breaker == nil {
		return c.introspect(ctx, token)
	}

	var principal user.Principal
	err := c.breaker.Execute(func() error {
		var err error
		principal, err = c.introspect(ctx, token)
		return err
	}, isCircuitFailure)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.WarnContext(ctx, "anubis circuit open, rejecting introspection", "state", c.breaker.State())
	}
	return principal, err
}

func (c *Client) introspect(ctx context.Context, token string) (user.Principal, error) {
	encoded, err := sonic.Marshal(introspectRequest{Token: token})
	if err != nil {
		return user.Principal{}, errors.Wrap(err, "marshal introspect request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.introspectURL, bytes.NewReader(encoded))
	if err != nil {
		return user.Principal{}, errors.Wrap(err, "create introspect request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.adminKey != "" {
		req.Header.Set(adminKeyHeader, c.adminKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return user.Principal{}, errors.Mark(errors.Wrap(err, "request introspection to anubis"), errAnubisTransient)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return user.Principal{}, errors.Mark(errors.Wrap(err, "read introspect response"), errAnubisTransient)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "introspection denied")
	case resp.StatusCode == http.StatusForbidden:
		// A rejected admin key is our misconfiguration, not the caller's.
		c.logger.ErrorContext(ctx, "anubis rejected admin key", "status_code", resp.StatusCode)
		return user.Principal{}, errors.Mark(errors.Newf("anubis rejected admin key with status %d", resp.StatusCode), errAnubisTransient)
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnContext(ctx, "anubis introspection unavailable", "status_code", resp.StatusCode)
		return user.Principal{}, errors.Mark(errors.Newf("anubis introspection failed with status %d", resp.StatusCode), errAnubisTransient)
	case resp.StatusCode != http.StatusOK:
		c.logger.WarnContext(ctx, "anubis introspection non-200", "status_code", resp.StatusCode)
		return user.Principal{}, errors.Newf("anubis introspection failed with status %d", resp.StatusCode)
	}

	var decoded introspectResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return user.Principal{}, errors.Wrap(err, "unmarshal introspect response")
	}
	if !decoded.Active {
		return user.Principal{}, errors.Wrap(usecase.ErrUnauthorized, "inactive token")
	}
	if strings.TrimSpace(decoded.UserID) == "" {
		return user.Principal{}, errors.New("invalid introspect response: user_id is empty")
	}

	role := user.RoleMember
	if slices.Contains(decoded.Roles, adminRole) {
		role = user.RoleAdmin
	}
	return user.Principal{
		UserID: decoded.UserID,
		Email:  decoded.Email,
		Role:   role,
	}, nil
}

type introspectRequest struct {
	Token string `json:"token"`
}

type introspectResponse struct {
	Active bool     `json:"active"`
	UserID string   `json:"user_id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}
