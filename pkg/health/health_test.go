package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func fail(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func decode(t *testing.T, w *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		s := New()
		s.AddLivenessCheck("goroutines", time.Second, pass())
		s.AddLivenessCheck("gc", time.Second, pass())

		w := httptest.NewRecorder()
		s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", decode(t, w).Status)
	})

	t.Run("failing past threshold", func(t *testing.T) {
		s := New()
		s.AddLivenessCheck("db", time.Second, fail("connection refused"))

		ctx := context.Background()
		for range defaultFailureThreshold {
			s.liveness[0].tick(ctx)
		}

		w := httptest.NewRecorder()
		s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})

	t.Run("failure below threshold stays healthy", func(t *testing.T) {
		s := New()
		s.AddLivenessCheck("flaky", time.Second, fail("temporary"))

		ctx := context.Background()
		for range defaultFailureThreshold - 1 {
			s.liveness[0].tick(ctx)
		}

		w := httptest.NewRecorder()
		s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no checks", func(t *testing.T) {
		w := httptest.NewRecorder()
		New().LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("ready and passing", func(t *testing.T) {
		s := New()
		s.AddReadinessCheck("postgres", time.Second, pass())
		s.SetReady(true)

		w := httptest.NewRecorder()
		s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready by default", func(t *testing.T) {
		s := New()
		s.AddReadinessCheck("postgres", time.Second, pass())

		w := httptest.NewRecorder()
		s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, decode(t, w).Checks, "_readiness")
	})

	t.Run("drains after SetReady false", func(t *testing.T) {
		s := New()
		s.SetReady(true)

		w := httptest.NewRecorder()
		s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, w.Code)

		s.SetReady(false)
		w = httptest.NewRecorder()
		s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("one failing check reported", func(t *testing.T) {
		s := New()
		s.AddReadinessCheck("postgres", time.Second, pass())
		s.AddReadinessCheck("gateway", time.Second, fail("upstream down"))
		s.SetReady(true)

		ctx := context.Background()
		for range defaultFailureThreshold {
			s.readiness[1].tick(ctx)
		}

		w := httptest.NewRecorder()
		s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decode(t, w)
		assert.Contains(t, body.Checks, "gateway")
		assert.NotContains(t, body.Checks, "postgres")
	})
}

func TestIsReady(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, pass())

	assert.False(t, s.IsReady())
	s.SetReady(true)
	assert.True(t, s.IsReady())
	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	failing := true
	s := New()
	s.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := s.liveness[0]
	ctx := context.Background()

	for range defaultFailureThreshold {
		p.tick(ctx)
	}
	_, bad := p.failure()
	require.True(t, bad)

	failing = false
	p.tick(ctx)
	_, bad = p.failure()
	assert.False(t, bad, "probe should recover after one pass")
}

func TestStopIsIdempotent(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, pass())
	s.Start(context.Background(), 50*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	s.AddLivenessCheck("a", time.Second, fail("err"))
	s.AddReadinessCheck("b", time.Second, pass())
	s.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.IsReady()
				s.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				s.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	s.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
