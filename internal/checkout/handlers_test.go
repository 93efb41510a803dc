package checkout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storelane/backoffice/internal/tenant"
)

type failingRunner struct{ err error }

func (r failingRunner) InTx(context.Context, func(context.Context, TxStore) error) error {
	return r.err
}

func TestCreateOrderInternalErrorCarriesCorrelationID(t *testing.T) {
	svc := &Service{
		Runner:        failingRunner{err: errors.New("storage unavailable")},
		Logger:        zerolog.Nop(),
		NumberRetries: 1,
	}
	h := &Handler{Svc: svc, Logger: zerolog.Nop()}

	body := `{"lines":[],"shippingAddress":{}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	ctx := tenant.With(req.Context(), uuid.NewString())
	ctx = context.WithValue(ctx, chimw.RequestIDKey, "req-7f3a")
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	h.CreateOrder(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "could not complete your order")
	assert.Contains(t, rr.Body.String(), "req-7f3a")
	assert.NotContains(t, rr.Body.String(), "storage unavailable")
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	h := &Handler{Svc: &Service{Runner: failingRunner{}}, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.CreateOrder(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "BAD_REQUEST")
}
