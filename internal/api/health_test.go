package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeHeartbeat struct {
	online bool
	err    error
}

func (f fakeHeartbeat) Check(context.Context) (bool, error) { return f.online, f.err }

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		heartbeat  fakeHeartbeat
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "healthy and online",
			heartbeat:  fakeHeartbeat{online: true},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "heartbeat_store": "ok", "bot_core": "online"},
		},
		{
			name:       "bot offline is not degraded",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "heartbeat_store": "ok", "bot_core": "offline"},
		},
		{
			name:       "database down",
			pingErr:    errStoreDown,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "unreachable"},
		},
		{
			name:       "heartbeat store down",
			heartbeat:  fakeHeartbeat{err: errors.New("dial tcp: refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "heartbeat_store": "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(NewHandler(&fakeProber{}, nil, discardLogger), &fakeRepo{pingErr: tt.pingErr}, tt.heartbeat, time.Second)
			w := httptest.NewRecorder()

			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var got struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for k, v := range tt.wantChecks {
				if got.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, got.Checks[k], v)
				}
			}
		})
	}
}
