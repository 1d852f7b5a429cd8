package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
)

func TestRendererRendersEveryPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	for _, name := range []string{PageDashboard, PageLogs, PageStats, PageChat, PageLogin} {
		var sb strings.Builder
		if err := r.Render(&sb, name, Page{Title: name, ActivePage: name, UserID: "admin_alice"}); err != nil {
			t.Errorf("Render(%s) failed: %v", name, err)
			continue
		}
		if !strings.Contains(sb.String(), "<title>"+name) {
			t.Errorf("Render(%s) missing title", name)
		}
	}
}

func TestRendererEscapesLogContent(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	page := Page{
		Title:      "Logs",
		ActivePage: PageLogs,
		Errors: []domain.ErrorLogRecord{{
			ID:           1,
			CreatedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			UserQuery:    "<script>alert(1)</script>",
			ErrorMessage: "boom",
			Context:      json.RawMessage(`{"chat":"<b>"}`),
		}},
	}

	var sb strings.Builder
	if err := r.Render(&sb, PageLogs, page); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := sb.String()
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("user query was not escaped")
	}
	if !strings.Contains(out, "2024-05-01 12:00:00 UTC") {
		t.Error("expected formatted timestamp")
	}
}

func TestRendererStoreUnavailableNotice(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}

	var sb strings.Builder
	if err := r.Render(&sb, PageLogs, Page{Title: "Logs", ActivePage: PageLogs, StoreUnavailable: true}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(sb.String(), "Log store unavailable") {
		t.Error("expected the unavailable notice")
	}
}

func TestRendererUnknownPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer failed: %v", err)
	}
	if err := r.Render(&strings.Builder{}, "missing", Page{}); err == nil {
		t.Fatal("expected error for unknown page")
	}
}

func TestStaticHandlerServesAssets(t *testing.T) {
	h := StaticHandler()

	for _, path := range []string{"/static/app.js", "/static/style.css"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing asset, got %d", w.Code)
	}
}
