package app

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fallwatch/internal/config"
	"fallwatch/internal/handler"
	"fallwatch/internal/logger"
	"fallwatch/internal/metrics"
	"fallwatch/internal/model"
)

type streamingPipeline struct{}

func (streamingPipeline) Process(ctx context.Context) (*model.DetectionResult, error) {
	return &model.DetectionResult{}, nil
}

func (streamingPipeline) StreamFrame(ctx context.Context) ([]byte, error) {
	time.Sleep(10 * time.Millisecond)
	return []byte("jpeg"), nil
}

func TestServe_OpenLiveFeedDoesNotHoldShutdown(t *testing.T) {
	cfg := &config.Config{
		LogDirectory:     filepath.Join(t.TempDir(), "logs"),
		StreamRetryDelay: time.Millisecond,
	}
	log := logger.NewLogger(cfg)
	defer log.Close()
	m := metrics.New()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newServer(ctx, handler.LiveFeedHandler(streamingPipeline{}, cfg, m, log))
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, server, listener, 5*time.Second, log)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/live_feed")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "--frame") {
		t.Fatalf("first line = %q, err %v", line, err)
	}

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, expected clean shutdown", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown waited on the open live feed")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("shutdown took %v", elapsed)
	}
	if n := m.StreamClients.Load(); n != 0 {
		t.Errorf("stream clients = %d after shutdown, expected 0", n)
	}
}
