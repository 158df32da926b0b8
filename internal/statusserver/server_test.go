package statusserver_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"reeler/internal/metrics"
	"reeler/internal/progress"
	"reeler/internal/statusserver"
)

type progressBody struct {
	RunID  string                    `json:"run_id"`
	Counts map[string]map[string]int `json:"counts"`
	Units  []struct {
		ID       string  `json:"id"`
		Stage    string  `json:"stage"`
		State    string  `json:"state"`
		Fraction float64 `json:"fraction"`
	} `json:"units"`
}

func newServer() (*statusserver.Server, *progress.Tracker) {
	tracker := progress.NewTracker()
	tracker.Publish(progress.Event{ID: "e1/video", Stage: progress.StageDownload, Kind: progress.Started})
	tracker.Publish(progress.Event{ID: "e1/video", Stage: progress.StageDownload, Kind: progress.Progressed, Value: 0.5})
	tracker.Publish(progress.Event{ID: "e0", Stage: progress.StageEncode, Kind: progress.Started})
	tracker.Publish(progress.Event{ID: "e0", Stage: progress.StageEncode, Kind: progress.Completed})
	return statusserver.New(metrics.New(), tracker, "run-1", nil), tracker
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestProgressSnapshot(t *testing.T) {
	srv, _ := newServer()
	rec := get(t, srv.Router(), "/progress")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body progressBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RunID != "run-1" || len(body.Units) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.Units[0].ID != "e1/video" || body.Units[0].Fraction != 0.5 || body.Units[0].State != "progressed" {
		t.Fatalf("unexpected first unit %+v", body.Units[0])
	}
	if body.Counts["encode"]["completed"] != 1 {
		t.Fatalf("unexpected counts %v", body.Counts)
	}
}

func TestProgressStageFilter(t *testing.T) {
	srv, _ := newServer()
	var body progressBody
	rec := get(t, srv.Router(), "/progress/encode")
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Units) != 1 || body.Units[0].Stage != "encode" {
		t.Fatalf("unexpected filtered units %+v", body.Units)
	}
	if _, ok := body.Counts["download"]; ok {
		t.Fatalf("download counts should be filtered: %v", body.Counts)
	}
	if rec := get(t, srv.Router(), "/progress/upload"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stage, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer()
	router := srv.Router()
	if rec := get(t, router, "/healthz"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	rec := get(t, router, "/metrics")
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "reeler_http_requests_total 1") {
		t.Fatalf("expected request counter in metrics:\n%s", body)
	}
}

func TestStartServesAndStopsWithContext(t *testing.T) {
	srv, _ := newServer()
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	cancel()
	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
