package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/bot-console/internal/domain"
	"github.com/ashureev/bot-console/internal/proxy"
)

func TestAskWithoutSessionReturnsAuthFragment(t *testing.T) {
	env := newTestEnv(t, envOptions{requireSession: true})

	resp, body := env.postJSON(t, "/chat/ask", `{"text":"hello"}`)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
	frags := decodeFragments(t, body)
	if len(frags) != 1 || frags[0].Type != domain.FragmentTypeText {
		t.Fatalf("expected one text fragment, got %+v", frags)
	}
	if !strings.HasPrefix(frags[0].Content, proxy.AuthFailureMarker) {
		t.Errorf("expected authorization marker, got %q", frags[0].Content)
	}
	if n := len(env.forwarder.Calls()); n != 0 {
		t.Errorf("expected no upstream call, got %d", n)
	}
}

func TestAskIgnoresBodyUserIDWhenSessionRequired(t *testing.T) {
	env := newTestEnv(t, envOptions{requireSession: true})
	env.login(t, "alice", "")

	resp, body := env.postJSON(t, "/chat/ask", `{"text":"hi","user_id":"admin_mallory"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	calls := env.forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	if calls[0].UserID != "admin_alice" {
		t.Errorf("expected session identity admin_alice, got %q", calls[0].UserID)
	}
	if calls[0].SessionID == "" {
		t.Error("expected session id to be forwarded for correlation")
	}
	if calls[0].Query == nil || *calls[0].Query != "hi" {
		t.Errorf("unexpected query %v", calls[0].Query)
	}
	if body != `[{"type":"text","content":"pong"}]` {
		t.Errorf("expected payload passthrough, got %s", body)
	}
}

func TestAskOpenModeUserID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"omitted", `{"text":"hi"}`, domain.DefaultUserID},
		{"null text", `{"text":null}`, domain.DefaultUserID},
		{"blank", `{"text":"hi","user_id":"  "}`, domain.DefaultUserID},
		{"explicit", `{"text":"hi","user_id":"ops_console"}`, "ops_console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{requireSession: false})

			resp, _ := env.postJSON(t, "/chat/ask", tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			calls := env.forwarder.Calls()
			if len(calls) != 1 || calls[0].UserID != tt.want {
				t.Fatalf("expected user %q, got %+v", tt.want, calls)
			}
		})
	}
}

func TestAskOpenModeNullTextForwardsNil(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	env.postJSON(t, "/chat/ask", `{"text":null,"settings":{"mode":"debug"}}`)

	calls := env.forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	if calls[0].Query != nil {
		t.Errorf("expected nil query, got %q", *calls[0].Query)
	}
	if calls[0].Settings["mode"] != "debug" {
		t.Errorf("expected settings to pass through, got %v", calls[0].Settings)
	}
}

func TestAskUpstreamFailureIsFragment(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.forwarder.result = proxy.Fail(proxy.FailureTimeout, "bot core did not respond within 2m0s", context.DeadlineExceeded)

	resp, body := env.postJSON(t, "/chat/ask", `{"text":"slow"}`)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	frags := decodeFragments(t, body)
	if len(frags) != 1 || !strings.HasPrefix(frags[0].Content, proxy.ErrorMarker) {
		t.Errorf("unexpected fragments %+v", frags)
	}
}

func TestAskBadBody(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	for _, body := range []string{"", "not json", `["array"]`, `{"text":42}`} {
		resp, out := env.postJSON(t, "/chat/ask", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, resp.StatusCode)
			continue
		}
		if frags := decodeFragments(t, out); len(frags) != 1 || !strings.HasPrefix(frags[0].Content, proxy.ErrorMarker) {
			t.Errorf("body %q: unexpected fragments %+v", body, frags)
		}
	}
	if n := len(env.forwarder.Calls()); n != 0 {
		t.Errorf("expected no upstream call, got %d", n)
	}
}

func TestAskRateLimited(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, envOptions{limiter: limiter})

	if resp, _ := env.postJSON(t, "/chat/ask", `{"text":"one"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}
	resp, body := env.postJSON(t, "/chat/ask", `{"text":"two"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.StatusCode)
	}
	if frags := decodeFragments(t, body); len(frags) != 1 {
		t.Errorf("expected one fragment, got %+v", frags)
	}
	if n := len(env.forwarder.Calls()); n != 1 {
		t.Errorf("expected one upstream call, got %d", n)
	}
}

func TestAskWritesNothingAfterClientDisconnect(t *testing.T) {
	forwarder := &fakeForwarder{
		forward: func(ctx context.Context, _ proxy.Call) proxy.Result {
			<-ctx.Done()
			return proxy.Fail(proxy.FailureCanceled, "request was canceled", ctx.Err())
		},
	}
	h := NewChatHandler(NewHandler(&fakeProber{}, nil, discardLogger), forwarder, ChatOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/chat/ask", strings.NewReader(`{"text":"hi"}`)).WithContext(ctx)
	w := httptest.NewRecorder()

	time.AfterFunc(20*time.Millisecond, cancel)
	h.Ask(w, req)

	if w.Body.Len() != 0 {
		t.Errorf("expected no body, got %s", w.Body.String())
	}
	if len(w.Header()) != 0 {
		t.Errorf("expected no headers, got %v", w.Header())
	}
}
