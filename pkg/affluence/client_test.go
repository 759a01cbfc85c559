package affluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/me/affluence/pkg/session"
)

// newTestClient starts handler on an httptest server and returns a client
// pointed at it with an in-memory session.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *session.Manager) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	cfg := DefaultConfig().WithBaseURL(srv.URL + "/api").WithTimeout(2 * time.Second)
	return New(cfg, sess, nil, opts...), sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestRequest_AttachesBearerAndJSONHeaders(t *testing.T) {
	var gotAuth, gotCT, gotPath string
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCT = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]string{"username": "alice"})
	})
	sess.SetToken(context.Background(), "tok-1")

	u, err := c.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("username = %q, want alice", u.Username)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want Bearer tok-1", gotAuth)
	}
	if gotCT != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotCT)
	}
	if gotPath != "/api/users/me" {
		t.Errorf("path = %q, want /api/users/me", gotPath)
	}
}

func TestRequest_SkipAuth(t *testing.T) {
	var gotAuth string
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"id": 1})
	})
	sess.SetToken(context.Background(), "tok-1")

	_, err := c.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none for skip-auth request", gotAuth)
	}
}

func TestRequest_NoTokenNoHeader(t *testing.T) {
	var hadAuth bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hadAuth = r.Header["Authorization"]
		writeJSON(w, http.StatusOK, []any{})
	})
	if _, err := c.Tasks(context.Background()); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if hadAuth {
		t.Error("Authorization header sent without a token")
	}
}

func TestRequest_TextResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	})

	resp, err := c.Request(context.Background(), "GET", "/ping", nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if resp.IsJSON {
		t.Error("IsJSON = true for text/plain")
	}
	if resp.Text() != "pong" {
		t.Errorf("Text() = %q, want pong", resp.Text())
	}

	var s string
	if err := c.Get(context.Background(), "/ping", &s); err != nil {
		t.Fatalf("Get into string: %v", err)
	}
	if s != "pong" {
		t.Errorf("string out = %q, want pong", s)
	}

	var m map[string]any
	if err := c.Get(context.Background(), "/ping", &m); err == nil {
		t.Error("expected error decoding text into a map")
	}
}

func TestRequest_Unauthorized(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		wantTarget string
	}{
		{"user page", "/dashboard.html", "/login.html"},
		{"admin page", "/admin-users.html", "/admin-login.html"},
		{"cli admin command", "affluence-admin-users", "/admin-login.html"},
		{"no page", "", "/login.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			}))
			defer srv.Close()

			ctx := context.Background()
			sess := session.New(ctx, session.NewMemoryStore(), nil)
			sess.SetToken(ctx, "expired")

			var target string
			c := New(DefaultConfig().WithBaseURL(srv.URL).WithPage(tt.page), sess, nil,
				WithUnauthorizedHandler(func(got string) { target = got }))

			_, err := c.Dashboard(ctx)
			if !IsUnauthorized(err) {
				t.Fatalf("error = %v, want unauthorized", err)
			}
			if !strings.Contains(err.Error(), "Could not validate credentials") {
				t.Errorf("error = %q, want backend detail", err.Error())
			}
			if sess.Token(ctx) != "" {
				t.Error("token not cleared after 401")
			}
			if target != tt.wantTarget {
				t.Errorf("target = %q, want %q", target, tt.wantTarget)
			}
		})
	}
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	var redirected bool
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Insufficient balance"})
	}, WithUnauthorizedHandler(func(string) { redirected = true }))
	sess.SetToken(context.Background(), "tok")

	_, err := c.CreateWithdrawal(context.Background(), 5000, BalanceActivity)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Message != "Insufficient balance" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if StatusCode(err) != http.StatusBadRequest {
		t.Errorf("StatusCode() = %d", StatusCode(err))
	}
	if redirected || sess.Token(context.Background()) != "tok" {
		t.Error("a 400 must not end the session")
	}
}

func TestRequest_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	c := New(DefaultConfig().WithBaseURL(srv.URL).WithTimeout(50*time.Millisecond), sess, nil)

	_, err := c.Request(context.Background(), "GET", "/slow", nil)
	if !IsTimeout(err) {
		t.Fatalf("error = %v, want timeout", err)
	}
	if !strings.Contains(err.Error(), "request timeout after 50ms") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestRequest_ParentCancelIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	c := New(DefaultConfig().WithBaseURL(srv.URL), sess, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Request(ctx, "GET", "/hang", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTimeout(err) {
		t.Errorf("caller cancellation reported as timeout: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled in chain", err)
	}
}

func TestRequest_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	c := New(DefaultConfig().WithBaseURL(url), sess, nil)

	_, err := c.Request(context.Background(), "GET", "/users/me", nil)
	var opErr *Error
	if !errors.As(err, &opErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if opErr.Op != "GET /users/me" {
		t.Errorf("Op = %q", opErr.Op)
	}
}

func TestRequest_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
	})

	_, err := c.Tasks(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRequest_RetryGETWhenEnabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "t"}})
	}))
	defer srv.Close()

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	cfg := DefaultConfig().WithBaseURL(srv.URL).WithRetries(3, time.Millisecond)
	c := New(cfg, sess, nil)

	tasks, err := c.Tasks(context.Background())
	if err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if len(tasks) != 1 || calls.Load() != 3 {
		t.Errorf("tasks = %d, calls = %d; want 1 task after 3 calls", len(tasks), calls.Load())
	}
}

func TestRequest_NoRetryForPOST(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "boom"})
	}))
	defer srv.Close()

	sess := session.New(context.Background(), session.NewMemoryStore(), nil)
	c := New(DefaultConfig().WithBaseURL(srv.URL).WithRetries(3, time.Millisecond), sess, nil)

	c.TakeTask(context.Background(), "1")
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRequest_QueryMerging(t *testing.T) {
	var gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []any{})
	})

	if _, err := c.Withdrawals(context.Background(), 10, 25); err != nil {
		t.Fatalf("Withdrawals: %v", err)
	}
	if gotQuery != "limit=25&skip=10" {
		t.Errorf("query = %q, want limit=25&skip=10", gotQuery)
	}
}

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Email already registered"}`, "Email already registered"},
		{
			"array detail",
			`{"detail":[{"loc":["body","email"],"msg":"field required"},{"loc":["body","items",0],"msg":"bad"}]}`,
			"body.email: field required; body.items.0: bad",
		},
		{"message only", `{"message":"Server exploded"}`, "Server exploded"},
		{"detail beats message", `{"detail":"d","message":"m"}`, "d"},
		{"empty object", `{}`, "API request failed"},
		{"plain text", `Internal Server Error`, "Internal Server Error"},
		{"empty body", ``, "API request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseErrorBody(http.StatusUnprocessableEntity, []byte(tt.body))
			if got.Message != tt.want {
				t.Errorf("Message = %q, want %q", got.Message, tt.want)
			}
		})
	}
}

func TestParseErrorBody_KeepsDetail(t *testing.T) {
	got := ParseErrorBody(422, []byte(`{"detail":[{"loc":["body","password"],"msg":"too short","type":"value_error"}]}`))
	if len(got.Detail) != 1 {
		t.Fatalf("Detail = %+v", got.Detail)
	}
	if got.Detail[0].Field() != "body.password" {
		t.Errorf("Field() = %q", got.Detail[0].Field())
	}
}

func TestLoginTarget(t *testing.T) {
	tests := []struct {
		page string
		want string
	}{
		{"/admin-dashboard.html", "/admin-login.html"},
		{"/admin-login.html", "/admin-login.html"},
		{"/dashboard.html", "/login.html"},
		{"/admin/dashboard", "/login.html"},
		{"", "/login.html"},
	}
	for _, tt := range tests {
		if got := LoginTarget(tt.page); got != tt.want {
			t.Errorf("LoginTarget(%q) = %q, want %q", tt.page, got, tt.want)
		}
	}
}

func TestIsJSON(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isJSON(tt.ct); got != tt.want {
			t.Errorf("isJSON(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}
