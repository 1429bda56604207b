package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"voiceagent/internal/domain"
	"voiceagent/internal/ports"
)

var _ ports.Telemetry = (*Prometheus)(nil)

func TestPrometheusCounters(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.ChunkSent()
	p.ChunkSent()
	p.ChunkDropped("muted")
	p.ChunkDropped("queue_full")
	p.ChunkDropped("muted")
	p.ConnectAttempt("opened")
	p.PayloadRejected()
	p.Interrupted()
	p.TurnCommitted(2)
	p.ChunkScheduled(250 * time.Millisecond)

	if got := testutil.ToFloat64(p.chunksSent); got != 2 {
		t.Fatalf("unexpected sent count: %v", got)
	}
	if got := testutil.ToFloat64(p.chunksDropped.WithLabelValues("muted")); got != 2 {
		t.Fatalf("unexpected muted drops: %v", got)
	}
	if got := testutil.ToFloat64(p.connectAttempts.WithLabelValues("opened")); got != 1 {
		t.Fatalf("unexpected attempts: %v", got)
	}
	if got := testutil.ToFloat64(p.transcriptLines); got != 2 {
		t.Fatalf("unexpected transcript lines: %v", got)
	}
	if got := testutil.CollectAndCount(p.scheduledSeconds); got != 1 {
		t.Fatalf("unexpected histogram series: %d", got)
	}
}

func TestPrometheusConnectionStateIsOneHot(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.ConnectionState(domain.StateConnecting)
	p.ConnectionState(domain.StateConnected)

	expected := `
# HELP voiceagent_connection_state 1 for the current connection state, 0 otherwise
# TYPE voiceagent_connection_state gauge
voiceagent_connection_state{state="connected"} 1
voiceagent_connection_state{state="connecting"} 0
voiceagent_connection_state{state="disconnected"} 0
voiceagent_connection_state{state="error"} 0
`
	if err := testutil.CollectAndCompare(p.connectionState, strings.NewReader(expected)); err != nil {
		t.Fatalf("unexpected gauge: %v", err)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	t.Parallel()

	p := NewPrometheus()
	p.ChunkSent()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, "127.0.0.1:0", nil, ready) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("serve failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("metrics server not ready")
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "voiceagent_capture_chunks_sent_total 1") {
		t.Fatalf("metric missing from scrape:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
