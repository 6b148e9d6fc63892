package metrics

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "dump_test_total",
		Help:      "test counter",
	})
	reg.MustRegister(c)
	c.Add(3)
	return reg
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, testRegistry(t)))
	require.Contains(t, buf.String(), "chronosync_dump_test_total 3")
}

func TestPush(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Push(ctx, zaptest.NewLogger(t), clock, srv.URL, "replica-1", time.Minute,
			WithGatherer(testRegistry(t)), WithRetries(0))
	}()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(paths) > 0
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "/metrics/job/chronosync/instance/replica-1", paths[0])
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Serve(ctx, zaptest.NewLogger(t), "127.0.0.1:0"))
}
