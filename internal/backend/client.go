package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/config"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/pricing"
)

type ctxKey int

const noRetryKey ctxKey = iota

// Client talks to the REST backend that owns discounts and orders.
type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *logger.Logger
}

func NewClient(cfg config.BackendConfig, log *logger.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = leveledLogger{log}
	rc.CheckRetry = checkRetry
	// hand the last response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		http:    rc,
		log:     log,
	}
}

// checkRetry is the default policy, except that requests marked with
// noRetryKey are never resent.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if v, _ := ctx.Value(noRetryKey).(bool); v {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// ListAutoApply fetches the active auto-apply discounts.
func (c *Client) ListAutoApply(ctx context.Context) ([]models.DiscountCode, error) {
	var list []models.DiscountCode
	if err := c.do(ctx, http.MethodGet, "/discounts/auto-apply/all", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetByCode looks a code up. A missing code is ErrNotFound.
func (c *Client) GetByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	code = models.CanonicalCode(code)
	if code == "" {
		return nil, ierr.NewError("empty discount code").
			WithHint("Please enter a discount code").
			Mark(ierr.ErrValidation)
	}

	var d models.DiscountCode
	if err := c.do(ctx, http.MethodGet, "/discounts/code/"+url.PathEscape(code), nil, &d); err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.NewError("discount code not found").
				WithHint(pricing.MsgInvalidCode).
				WithReportableDetails(map[string]any{"code": code}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	return &d, nil
}

// Validate asks the backend to authorise a code for the given subtotal. A
// response with valid=false comes back as ErrRejected carrying the
// backend's message as its hint.
func (c *Client) Validate(ctx context.Context, req models.ValidationRequest) (*models.ValidationResponse, error) {
	req.Code = models.CanonicalCode(req.Code)

	var resp models.ValidationResponse
	if err := c.do(ctx, http.MethodPost, "/discounts/validate", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid {
		msg := resp.Message
		if msg == "" {
			msg = pricing.MsgInvalidCode
		}
		return nil, ierr.NewError("discount rejected by backend").
			WithHint(msg).
			WithReportableDetails(map[string]any{"code": req.Code}).
			Mark(ierr.ErrRejected)
	}
	return &resp, nil
}

// CreateOrder submits an order. Order creation is not idempotent so it is
// sent once.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	ctx = context.WithValue(ctx, noRetryKey, true)

	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Please check the request payload").
				Mark(ierr.ErrValidation)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return ierr.WithError(err).
			WithMessagef("build request %s %s", method, path).
			Mark(ierr.ErrHTTPClient)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ierr.WithError(ctx.Err()).
				WithHint("The request was cancelled").
				Mark(ierr.ErrTransient)
		}
		c.log.Warnw("backend request failed", "method", method, "path", path, "error", err)
		return ierr.WithError(err).
			WithHint("Unable to reach the store right now, please try again").
			Mark(ierr.ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Unable to reach the store right now, please try again").
			Mark(ierr.ErrTransient)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Debugw("backend returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return statusError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ierr.WithError(err).
			WithMessagef("decode %s %s", method, path).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

// statusError maps a backend error status onto the service sentinels. The
// backend reports FastAPI style {"detail": "..."} bodies.
func statusError(status int, body []byte) error {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)

	detail := payload.Message
	if s, ok := payload.Detail.(string); ok && s != "" {
		detail = s
	}

	b := ierr.NewError(fmt.Sprintf("backend returned %d", status))
	if detail != "" {
		b = b.WithHint(detail)
	}

	switch {
	case status == http.StatusNotFound:
		return b.Mark(ierr.ErrNotFound)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return b.Mark(ierr.ErrPermissionDenied)
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		if detail == "" {
			b = b.WithHint("Unable to reach the store right now, please try again")
		}
		return b.Mark(ierr.ErrTransient)
	case status == http.StatusUnprocessableEntity && detail != "":
		// a string detail is a business rule refusal, schema failures carry a list
		return b.Mark(ierr.ErrRejected)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return b.Mark(ierr.ErrValidation)
	default:
		return b.Mark(ierr.ErrHTTPClient)
	}
}

// leveledLogger routes retryablehttp's logging through zap.
type leveledLogger struct {
	l *logger.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.l.Errorw(msg, keysAndValues...)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.l.Infow(msg, keysAndValues...)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.l.Debugw(msg, keysAndValues...)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.l.Warnw(msg, keysAndValues...)
}
