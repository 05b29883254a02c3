package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/config"
	ierr "github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/errors"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/logger"
	"github.com/Kyle-Pantig/e-commerce-admin-v2-sub001/internal/models"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return NewClient(config.BackendConfig{
		Mode:         config.BackendModeRemote,
		BaseURL:      srv.URL + "/",
		APIToken:     "secret",
		Timeout:      2 * time.Second,
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}, logger.NewNop())
}

func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListAutoApply(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discounts/auto-apply/all", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeBody(w, http.StatusOK, []map[string]any{{
			"id":             "d1",
			"code":           "AUTO10",
			"discount_type":  "PERCENTAGE",
			"discount_value": "10",
			"is_active":      true,
			"auto_apply":     true,
		}})
	}))

	list, err := c.ListAutoApply(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AUTO10", list[0].Code)
	assert.True(t, list[0].DiscountValue.Equal(decimal.NewFromInt(10)))
}

func TestGetByCode(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/discounts/code/SAVE10":
			writeBody(w, http.StatusOK, map[string]any{"id": "d2", "code": "SAVE10"})
		default:
			writeBody(w, http.StatusNotFound, map[string]any{"detail": "Discount code not found"})
		}
	}))
	ctx := context.Background()

	t.Run("canonicalises the code", func(t *testing.T) {
		d, err := c.GetByCode(ctx, " save10 ")
		require.NoError(t, err)
		assert.Equal(t, "d2", d.ID)
	})

	t.Run("missing code is not found", func(t *testing.T) {
		_, err := c.GetByCode(ctx, "NOPE")
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
		assert.Equal(t, "Invalid discount code", ierr.Reason(err))
	})

	t.Run("blank code is a validation error", func(t *testing.T) {
		_, err := c.GetByCode(ctx, "   ")
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestValidate(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req models.ValidationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.OrderSubtotal.LessThan(decimal.NewFromInt(50)) {
			writeBody(w, http.StatusOK, map[string]any{
				"valid":   false,
				"message": "Minimum order amount of 50.00 required",
			})
			return
		}
		writeBody(w, http.StatusOK, map[string]any{
			"valid":           true,
			"code":            req.Code,
			"discount_id":     "d2",
			"discount_amount": "5",
			"message":         "Discount applied!",
		})
	}))
	ctx := context.Background()

	resp, err := c.Validate(ctx, models.ValidationRequest{Code: "save10", OrderSubtotal: decimal.NewFromInt(60)})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", *resp.Code)
	assert.True(t, resp.DiscountAmount.Equal(decimal.NewFromInt(5)))

	_, err = c.Validate(ctx, models.ValidationRequest{Code: "save10", OrderSubtotal: decimal.NewFromInt(10)})
	require.Error(t, err)
	assert.True(t, ierr.IsRejected(err))
	assert.Equal(t, "Minimum order amount of 50.00 required", ierr.Reason(err))
}

func TestServerErrorsAreRetriedThenTransient(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.ListAutoApply(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsTransient(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryRecovers(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeBody(w, http.StatusOK, []any{})
	}))

	list, err := c.ListAutoApply(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateOrderIsSentOnce(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.CreateOrder(context.Background(), models.OrderRequest{CustomerName: "A"})
	require.Error(t, err)
	assert.True(t, ierr.IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusBadRequest, ierr.IsValidation},
		{http.StatusUnprocessableEntity, ierr.IsRejected},
		{http.StatusUnauthorized, func(err error) bool { return ierr.Is(err, ierr.ErrPermissionDenied) }},
		{http.StatusTooManyRequests, ierr.IsTransient},
		{http.StatusConflict, func(err error) bool { return ierr.Is(err, ierr.ErrHTTPClient) }},
	}
	for _, tc := range cases {
		err := statusError(tc.status, []byte(`{"detail":"nope"}`))
		assert.True(t, tc.check(err), "status %d", tc.status)
		assert.Equal(t, "nope", ierr.Reason(err))
	}
}

func TestUnprocessableValidateIsRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnprocessableEntity, map[string]any{"detail": "This discount has expired"})
	}))

	_, err := c.Validate(context.Background(), models.ValidationRequest{Code: "old", OrderSubtotal: decimal.NewFromInt(60)})
	require.Error(t, err)
	assert.True(t, ierr.IsRejected(err))
	assert.False(t, ierr.IsValidation(err))
	assert.Equal(t, "This discount has expired", ierr.Reason(err))

	err = statusError(http.StatusUnprocessableEntity, []byte(`{"detail":[{"msg":"field required"}]}`))
	assert.True(t, ierr.IsValidation(err))
	assert.False(t, ierr.IsRejected(err))
}

func TestUnreachableBackendIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient(config.BackendConfig{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}, logger.NewNop())

	_, err := c.ListAutoApply(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsTransient(err))
}
