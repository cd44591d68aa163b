package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/drrobo/assistant/internal/config"
	"github.com/drrobo/assistant/internal/domain/suggestion"
	"github.com/drrobo/assistant/internal/platform/middleware"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNormalizeFiles_KeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.json", `{"safety":{"red_flags":["Chest pain"]}}`),
		writeFile(t, dir, "b.txt", "Sorry, no analysis available."),
		writeFile(t, dir, "c.txt", "Result:\n{\"follow_ups\":[{\"action\":\"Recheck BP\",\"timeframe\":\"1 week\"}]}"),
	}

	results, err := normalizeFiles(context.Background(), suggestion.NewNormalizer(), paths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Source != paths[i] {
			t.Errorf("result %d: expected source %s, got %s", i, paths[i], r.Source)
		}
	}
	if len(results[0].Suggestions) != 1 || results[0].Suggestions[0].Type != suggestion.TypeWarning {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if len(results[1].Suggestions) != 0 || results[1].Reason == "" {
		t.Errorf("expected empty result with a reason, got %+v", results[1])
	}
	if len(results[2].Suggestions) != 1 || results[2].Suggestions[0].Content != "• Recheck BP (1 week)" {
		t.Errorf("unexpected third result %+v", results[2])
	}
}

func TestNormalizeFiles_MissingFile(t *testing.T) {
	_, err := normalizeFiles(context.Background(), suggestion.NewNormalizer(), []string{filepath.Join(t.TempDir(), "nope.json")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNormalizeCmd_Stdin(t *testing.T) {
	cmd := normalizeCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(`{"raw_text":"Probable viral URTI"}`))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--fallback"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []normalizeResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(results) != 1 || results[0].Source != "stdin" {
		t.Fatalf("unexpected output %s", out.String())
	}
	if len(results[0].Suggestions) != 1 || results[0].Suggestions[0].Title != "Clinical Analysis Summary" {
		t.Errorf("expected fallback summary card, got %+v", results[0].Suggestions)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		LogLevel:       "info",
		Store:          config.StoreMemory,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   100,
		RateLimitBurst: 200,
		BodyLimit:      "1M",
		RequestTimeout: 5 * time.Second,
	}
}

func TestNewServer_MemoryStore(t *testing.T) {
	e, cleanup, err := newServer(context.Background(), testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected request id header")
	}

	body := `{"session_id":"visit-1","notes":"Fever and cough","agent_result":{"diagnosis":{"primary":{"condition":"Influenza","confidence":0.81}}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/visit-1/suggestions", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Influenza") {
		t.Errorf("expected stored suggestion, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/suggestions/unknown/approve", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestNewServer_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimit = "1K"
	e, cleanup, err := newServer(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/normalize", strings.NewReader(strings.Repeat("x", 4096)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}
