// Unit tests for metrics HTTP server
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mixing-extruder/pkg/mixing"
)

type staticGatherer string

func (s staticGatherer) Gather() string { return string(s) }

func serve(t *testing.T, s *Server, method, path string, setup func(*http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if setup != nil {
		setup(req)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Address != ":9100" {
		t.Errorf("expected default address :9100, got %s", cfg.Address)
	}
	if cfg.ReadTimeout != 10*time.Second || cfg.WriteTimeout != 10*time.Second {
		t.Error("unexpected timeouts")
	}

	s := NewServer(staticGatherer(""), ":9200")
	if s.Addr() != ":9200" {
		t.Errorf("expected address :9200, got %s", s.Addr())
	}
	if s.IsRunning() {
		t.Error("server should not be running before Start")
	}
}

func TestHandleMetrics(t *testing.T) {
	m, err := mixing.New(mixing.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(NewMixingMetrics(m), ":0")

	resp := serve(t, s, http.MethodGet, "/metrics", nil)
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("unexpected content type: %s", ct)
	}
	if !strings.Contains(string(body), "mixer_ratio") {
		t.Error("missing ratio metric")
	}
}

func TestHandleMetricsHead(t *testing.T) {
	s := NewServer(staticGatherer("abc\n"), ":0")
	resp := serve(t, s, http.MethodHead, "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "4" {
		t.Errorf("expected Content-Length 4, got %q", cl)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("HEAD should have no body, got %q", body)
	}
}

func TestHandleMetricsMethodNotAllowed(t *testing.T) {
	s := NewServer(staticGatherer(""), ":0")
	resp := serve(t, s, http.MethodPost, "/metrics", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", resp.StatusCode)
	}
}

func TestHandleHealthAndReady(t *testing.T) {
	s := NewServer(staticGatherer(""), ":0")
	if resp := serve(t, s, http.MethodGet, "/health", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", resp.StatusCode)
	}
	if resp := serve(t, s, http.MethodGet, "/ready", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready before start: expected 503, got %d", resp.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.Username, cfg.Password = "admin", "secret"
	s := NewServerWithConfig(staticGatherer("x\n"), cfg)

	tests := []struct {
		name string
		user string
		pass string
		set  bool
		want int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"valid", "admin", "secret", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serve(t, s, http.MethodGet, "/metrics", func(r *http.Request) {
				if tt.set {
					r.SetBasicAuth(tt.user, tt.pass)
				}
			})
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestServerStartShutdown(t *testing.T) {
	s := NewServer(staticGatherer("up 1\n"), "127.0.0.1:0")
	errCh := s.StartAsync()

	deadline := time.Now().Add(2 * time.Second)
	for !s.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + "/ready")
	if err != nil {
		t.Fatalf("GET /ready failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready: expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("unexpected serve error: %v", err)
	}
	if s.IsRunning() {
		t.Error("server should not be running after Shutdown")
	}
}
