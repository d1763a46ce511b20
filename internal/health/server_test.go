package health

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikey/llm-answer-bot/internal/core"
	"go.uber.org/zap/zaptest"
)

type fakeModel struct {
	loaded atomic.Bool
}

func (m *fakeModel) IsLoaded() bool { return m.loaded.Load() }

func (m *fakeModel) Describe() core.ModelInfo {
	return core.ModelInfo{Provider: "openai", Name: "code-du-travail", Loaded: m.loaded.Load()}
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("%s returned invalid JSON %q: %v", path, w.Body.String(), err)
	}
	return w.Code, body
}

func TestLiveness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(":0", &fakeModel{}, zaptest.NewLogger(t))

	code, body := get(t, s.Handler(), "/healthz")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("/healthz = %d %v", code, body)
	}
}

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	model := &fakeModel{}
	s := NewServer(":0", model, zaptest.NewLogger(t))
	s.Track("telegram")
	s.Track("email")

	code, body := get(t, s.Handler(), "/readyz")
	if code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Errorf("/readyz before load = %d %v", code, body)
	}

	model.loaded.Store(true)
	s.SetRunning("telegram", true)
	if code, _ := get(t, s.Handler(), "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz with email stopped = %d, want 503", code)
	}

	s.SetRunning("email", true)
	code, body = get(t, s.Handler(), "/readyz")
	if code != http.StatusOK || body["status"] != "ready" {
		t.Errorf("/readyz = %d %v, want ready", code, body)
	}
	adapters, _ := body["adapters"].(map[string]interface{})
	if adapters["telegram"] != true || adapters["email"] != true {
		t.Errorf("adapters = %v", adapters)
	}
	modelBody, _ := body["model"].(map[string]interface{})
	if modelBody["name"] != "code-du-travail" || modelBody["loaded"] != true {
		t.Errorf("model = %v", modelBody)
	}

	s.SetRunning("email", false)
	if code, _ := get(t, s.Handler(), "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("/readyz after email stopped = %d, want 503", code)
	}
}

func TestReadinessWithoutAdapters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	model := &fakeModel{}
	model.loaded.Store(true)
	s := NewServer(":0", model, zaptest.NewLogger(t))

	if s.Ready() {
		t.Error("a process without tracked adapters is not ready")
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	s := NewServer(addr, &fakeModel{}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + addr + "/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health endpoint never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}
}
