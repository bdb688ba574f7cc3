package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthReportsHealthyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	c.RegisterWorker("planner", srv.URL)
	ok, err := c.Health(context.Background(), "planner")
	require.NoError(t, err)
	assert.True(t, ok)

	descs := c.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, HealthHealthy, descs[0].LastHealth)
}

func TestHealthUnknownWorkerErrors(t *testing.T) {
	c := New()
	_, err := c.Health(context.Background(), "nope")
	assert.Error(t, err)
}

func TestCallSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New()
	c.RegisterWorker("executor", srv.URL)
	resp, err := c.Call(context.Background(), "executor", "/exec", http.MethodPost, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCallRetriesOnceOnTransportFailure(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			// Simulate a transport-level failure by hanging up.
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	c.RegisterWorker("flaky", srv.URL)
	_, err := c.Call(context.Background(), "flaky", "/x", http.MethodGet, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestCallReturnsHandlerErrorOn5xxWithoutRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New()
	c.RegisterWorker("broken", srv.URL)
	_, err := c.Call(context.Background(), "broken", "/x", http.MethodGet, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandler)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestCallFailsFastWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	c := New(WithConcurrency(1), WithQueueDepth(1))
	c.RegisterWorker("slow", srv.URL)

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			c.Call(context.Background(), "slow", "/x", http.MethodGet, nil)
			done <- struct{}{}
		}()
	}

	// Give the goroutines time to queue up against the single concurrency
	// slot and single queue slot; a fourth concurrent caller should fail
	// fast rather than block indefinitely.
	time.Sleep(50 * time.Millisecond)
	_, err := c.Call(context.Background(), "slow", "/x", http.MethodGet, nil)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}

func TestCircuitOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, _ := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	c := New()
	c.RegisterWorker("dead", srv.URL)
	for i := 0; i < failureThreshold+1; i++ {
		c.Call(context.Background(), "dead", "/x", http.MethodGet, nil)
	}

	_, err := c.Call(context.Background(), "dead", "/x", http.MethodGet, nil)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
}
