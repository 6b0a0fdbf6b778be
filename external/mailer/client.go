package mailer

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/castaway-league/internal/domain/notification"
	"github.com/riskibarqy/castaway-league/internal/platform/logging"
	"github.com/riskibarqy/castaway-league/internal/platform/resilience"
	"github.com/riskibarqy/castaway-league/internal/usecase"
	"github.com/valyala/bytebufferpool"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultSendPath = "/v1/messages"
	defaultTimeout  = 10 * time.Second
	maxLoggedBody   = 512
)

var errMailerTransient = crerr.New("mailer transient failure")

type Config struct {
	BaseURL        string
	APIKey         string
	SendPath       string
	Timeout        time.Duration
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client delivers outbox messages to the mail relay over HTTP.
type Client struct {
	httpClient     *fasthttp.Client
	sendURL        string
	apiKey         string
	timeout        time.Duration
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	logger         *logging.Logger
}

func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.Default()
	}
	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid MAILER_BASE_URL")
	}
	path := strings.TrimSpace(cfg.SendPath)
	if path == "" {
		path = defaultSendPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient: &fasthttp.Client{
			Name:                     "castaway-league-mailer",
			ReadTimeout:              timeout,
			WriteTimeout:             timeout,
			MaxIdleConnDuration:      30 * time.Second,
			NoDefaultUserAgentHeader: true,
		},
		sendURL:        baseURL + "/" + strings.TrimLeft(path, "/"),
		apiKey:         strings.TrimSpace(cfg.APIKey),
		timeout:        timeout,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		logger:         logger.Component("mailer"),
	}, nil
}

func (c *Client) Send(ctx context.Context, message notification.Message) error {
	ctx, span := otel.Tracer("castaway-league/mailer").Start(ctx, "mailer.Client.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("mailer.message_id", message.ID),
		attribute.String("mailer.kind", string(message.Kind)),
	)

	if err := ctx.Err(); err != nil {
		return crerr.Wrap(err, "send notification")
	}

	var err error
	if c.circuitEnabled {
		err = c.breaker.Execute(func() error { return c.send(ctx, message) }, isCircuitFailure)
		if crerr.Is(err, resilience.ErrCircuitOpen) {
			c.logger.WarnContext(ctx, "mailer circuit breaker rejected request", "state", c.breaker.State())
			err = crerr.Wrap(err, "mailer is temporarily unavailable")
		}
	} else {
		err = c.send(ctx, message)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) send(ctx context.Context, message notification.Message) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(sendRequest{
		ID:          message.ID,
		Kind:        string(message.Kind),
		RecipientID: message.RecipientID,
		Subject:     message.Subject,
		Payload:     message.Payload,
	}); err != nil {
		return crerr.Wrap(err, "marshal mailer request")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.sendURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Idempotency-Key", message.ID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.SetBody(buf.B)

	if err := c.httpClient.DoTimeout(req, resp, c.requestTimeout(ctx)); err != nil {
		return crerr.Mark(crerr.Wrapf(err, "post message id=%s", message.ID), errMailerTransient)
	}

	status := resp.StatusCode()
	if status/100 == 2 {
		c.logger.DebugContext(ctx, "mailer accepted message", "message_id", message.ID, "kind", message.Kind)
		return nil
	}

	body := truncateForLog(strings.TrimSpace(string(resp.Body())), maxLoggedBody)
	if isRetryableStatus(status) {
		return crerr.Mark(crerr.Newf("mailer status=%d message_id=%s body=%s", status, message.ID, body), errMailerTransient)
	}
	return crerr.Wrapf(usecase.ErrNotificationRejected, "mailer status=%d message_id=%s body=%s", status, message.ID, body)
}

func (c *Client) requestTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return c.timeout
	}
	if remaining := time.Until(deadline); remaining < c.timeout {
		return max(remaining, time.Millisecond)
	}
	return c.timeout
}

type sendRequest struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	RecipientID string         `json:"recipient_id"`
	Subject     string         `json:"subject"`
	Payload     map[string]any `json:"payload,omitempty"`
}

func isCircuitFailure(err error) bool {
	return crerr.Is(err, errMailerTransient)
}

func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusRequestTimeout ||
		statusCode == http.StatusTooManyRequests ||
		statusCode >= http.StatusInternalServerError
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}

func truncateForLog(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "...(truncated)"
}
