package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func readiness(t *testing.T, h *Handler) (int, ReadinessResponse) {
	t.Helper()
	w := serve(h, "/health/ready")
	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestLiveness(t *testing.T) {
	w := serve(New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
}

func TestReadiness(t *testing.T) {
	up := func(context.Context) error { return nil }

	t.Run("all up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", up)
		h.RegisterOptional("kafka", up)
		code, resp := readiness(t, h)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"postgres": "up", "kafka": "up"}, resp.Checks)
	})

	t.Run("optional failure degrades", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", up)
		h.RegisterOptional("payment_circuit", func(context.Context) error { return errors.New("circuit open") })
		code, resp := readiness(t, h)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "down: circuit open", resp.Checks["payment_circuit"])
	})

	t.Run("critical failure is not ready", func(t *testing.T) {
		h := New("test")
		h.RegisterOptional("kafka", func(context.Context) error { return errors.New("no brokers") })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })
		code, resp := readiness(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "down: connection refused", resp.Checks["redis"])
	})

	t.Run("re-registering replaces the check", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("postgres", func(context.Context) error { return errors.New("down") })
		h.RegisterCheck("postgres", up)
		code, _ := readiness(t, h)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("checks share one timeout", func(t *testing.T) {
		h := New("test")
		h.checkTimeout = 50 * time.Millisecond
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		h.RegisterCheck("postgres", slow)
		h.RegisterCheck("redis", slow)

		start := time.Now()
		code, _ := readiness(t, h)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestStatusListsDependencies(t *testing.T) {
	h := New("dev")
	h.RegisterOptional("kafka", func(context.Context) error { return nil })
	h.RegisterCheck("postgres", func(context.Context) error { return nil })

	w := serve(h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "dev", resp.Environment)
	assert.Equal(t, []string{"kafka", "postgres"}, resp.Dependencies)
}
