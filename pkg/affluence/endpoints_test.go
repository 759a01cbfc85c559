package affluence

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/me/affluence/pkg/session"
)

func TestLogin_PostsFormAndStoresToken(t *testing.T) {
	var gotCT, gotUser, gotPass, gotPath string
	var hadAuth bool
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		_, hadAuth = r.Header["Authorization"]
		r.ParseForm()
		gotUser = r.PostForm.Get("username")
		gotPass = r.PostForm.Get("password")
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "jwt-abc", "token_type": "bearer"})
	})
	ctx := context.Background()
	sess.SetToken(ctx, "stale")

	tr, err := c.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tr.AccessToken != "jwt-abc" {
		t.Errorf("AccessToken = %q", tr.AccessToken)
	}
	if gotPath != "/api/auth/login" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCT != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	if gotUser != "alice@example.com" || gotPass != "secret1" {
		t.Errorf("form = %q/%q", gotUser, gotPass)
	}
	if hadAuth {
		t.Error("login must not send a bearer token")
	}
	if sess.Token(ctx) != "jwt-abc" {
		t.Errorf("stored token = %q", sess.Token(ctx))
	}
}

func TestAdminLogin_Endpoint(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "adm"})
	})
	if _, err := c.AdminLogin(context.Background(), "admin@example.com", "pw"); err != nil {
		t.Fatalf("AdminLogin: %v", err)
	}
	if gotPath != "/api/auth/admin/login" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantMsg string
	}{
		{"bad credentials", http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"}, "HTTP 401: Incorrect email or password"},
		{"no token", http.StatusOK, map[string]string{"token_type": "bearer"}, "/auth/login: response carried no access_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := c.Login(context.Background(), "a@b.co", "pw")
			if err == nil || err.Error() != tt.wantMsg {
				t.Fatalf("error = %v, want %q", err, tt.wantMsg)
			}
			if sess.IsAuthenticated(context.Background()) {
				t.Error("failed login left a session")
			}
		})
	}
}

func TestLogin_RejectedKeepsSession(t *testing.T) {
	for _, admin := range []bool{false, true} {
		name := "user login"
		if admin {
			name = "admin login"
		}
		t.Run(name, func(t *testing.T) {
			var redirected string
			c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			}, WithUnauthorizedHandler(func(target string) { redirected = target }))

			ctx := context.Background()
			sess.SetToken(ctx, "admin123")
			if err := sess.StartImpersonation(ctx, "user456", session.Meta{Username: "bob"}); err != nil {
				t.Fatal(err)
			}

			login := c.Login
			if admin {
				login = c.AdminLogin
			}
			_, err := login(ctx, "a@b.co", "wrong")
			if !IsUnauthorized(err) {
				t.Fatalf("error = %v, want 401", err)
			}
			if redirected != "" {
				t.Errorf("unauthorized handler called with %q", redirected)
			}
			if got := sess.Token(ctx); got != "user456" {
				t.Errorf("token = %q, want user456", got)
			}
			if !sess.IsImpersonating(ctx) {
				t.Error("impersonation backup dropped")
			}
		})
	}
}

func TestLogin_ValidatesBeforeSending(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	if _, err := c.Login(context.Background(), "", "pw"); !IsValidation(err) {
		t.Errorf("error = %v, want validation error", err)
	}
	if called {
		t.Error("request sent despite validation failure")
	}
}

func TestRegister_Body(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusCreated, map[string]any{"id": 9, "username": "alice"})
	})
	out, err := c.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if out["username"] != "alice" {
		t.Errorf("response = %v", out)
	}
	if body["coupon_code"] != "CPN-123" || body["full_name"] != "Alice A" {
		t.Errorf("body = %v", body)
	}
}

func TestTopEarners_FallsBackOnlyOn404(t *testing.T) {
	tests := []struct {
		name        string
		primary     int
		wantErr     bool
		wantVisited []string
	}{
		{"primary ok", http.StatusOK, false, []string{"/api/users/top-earners"}},
		{"primary 404", http.StatusNotFound, false, []string{"/api/users/top-earners", "/api/leaderboard"}},
		{"primary 500", http.StatusInternalServerError, true, []string{"/api/users/top-earners"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var visited []string
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				visited = append(visited, r.URL.Path)
				if r.URL.Query().Get("limit") != "20" {
					t.Errorf("limit = %q, want 20", r.URL.Query().Get("limit"))
				}
				if r.URL.Path == "/api/users/top-earners" && tt.primary != http.StatusOK {
					writeJSON(w, tt.primary, map[string]string{"detail": "nope"})
					return
				}
				writeJSON(w, http.StatusOK, []map[string]any{{"username": "top", "affiliate_balance": "9000"}})
			})

			got, err := c.TopEarners(context.Background(), 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (len(got) != 1 || got[0].AffiliateBalance != 9000) {
				t.Errorf("got %+v", got)
			}
			if len(visited) != len(tt.wantVisited) {
				t.Fatalf("visited %v, want %v", visited, tt.wantVisited)
			}
			for i := range visited {
				if visited[i] != tt.wantVisited[i] {
					t.Errorf("visited[%d] = %q, want %q", i, visited[i], tt.wantVisited[i])
				}
			}
		})
	}
}

func TestTasks_ErrorIsNotMasked(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "db down"})
	})
	tasks, err := c.Tasks(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if tasks != nil {
		t.Errorf("tasks = %v, want nil on failure", tasks)
	}
}

func TestTaskBoard(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tasks/":
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "title": "Follow"}, {"id": 2, "title": "Share"}})
		case "/api/tasks/my-tasks":
			writeJSON(w, http.StatusOK, []map[string]any{{"task_id": 2, "status": "taken"}})
		default:
			http.NotFound(w, r)
		}
	})
	board, err := c.TaskBoard(context.Background())
	if err != nil {
		t.Fatalf("TaskBoard: %v", err)
	}
	if len(board) != 2 || board[0].UserStatus != TaskAvailable || board[1].UserStatus != TaskTaken {
		t.Errorf("board = %+v", board)
	}
}

func TestStartStream_SendsNumericID(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 5, "audio_id": 12})
	})
	s, err := c.StartStream(context.Background(), "12")
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if v, ok := body["audio_id"].(float64); !ok || v != 12 {
		t.Errorf("audio_id = %#v, want number 12", body["audio_id"])
	}
	if s.ID != "5" {
		t.Errorf("stream id = %q", s.ID)
	}

	if _, err := c.UpdateStream(context.Background(), "5", -1); !IsValidation(err) {
		t.Errorf("negative duration: err = %v", err)
	}
}

func TestImpersonate(t *testing.T) {
	var gotAuth, gotPath string
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "user-tok",
			"user":         map[string]any{"id": 42, "username": "bob", "email": "bob@example.com"},
		})
	})
	ctx := context.Background()

	if _, err := c.Impersonate(ctx, "42"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("without session: err = %v", err)
	}

	sess.SetToken(ctx, "admin123")
	meta, err := c.Impersonate(ctx, "42")
	if err != nil {
		t.Fatalf("Impersonate: %v", err)
	}
	if gotPath != "/api/admin/impersonate/42" || gotAuth != "Bearer admin123" {
		t.Errorf("path = %q auth = %q", gotPath, gotAuth)
	}
	if meta == nil || meta.Username != "bob" || meta.UserID != "42" {
		t.Errorf("meta = %+v", meta)
	}
	if sess.Token(ctx) != "user-tok" || !sess.IsImpersonating(ctx) {
		t.Error("session not switched to impersonated user")
	}

	restored, err := c.StopImpersonation(ctx)
	if err != nil || !restored {
		t.Fatalf("StopImpersonation = %v, %v", restored, err)
	}
	if sess.Token(ctx) != "admin123" {
		t.Errorf("token after stop = %q", sess.Token(ctx))
	}
}

func TestProcessWithdrawal(t *testing.T) {
	var body map[string]string
	var gotMethod, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 3, "status": body["status"]})
	})
	ctx := context.Background()

	if _, err := c.ProcessWithdrawal(ctx, "3", WithdrawalPending, ""); !IsValidation(err) {
		t.Errorf("pending: err = %v, want validation error", err)
	}
	w, err := c.ProcessWithdrawal(ctx, "3", WithdrawalRejected, "wrong account")
	if err != nil {
		t.Fatalf("ProcessWithdrawal: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/admin/withdrawals/3/approve" {
		t.Errorf("%s %s", gotMethod, gotPath)
	}
	if body["status"] != "rejected" || body["admin_note"] != "wrong account" {
		t.Errorf("body = %v", body)
	}
	if w.Status != WithdrawalRejected {
		t.Errorf("status = %q", w.Status)
	}

	if _, err := c.AdminWithdrawals(ctx, 0, 10, "bogus"); !IsValidation(err) {
		t.Errorf("bogus filter: err = %v", err)
	}
}

func TestClickToEarn_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"object", `{"id":1,"amount":50}`, 1},
		{"array", `[{"id":1},{"id":2}]`, 2},
		{"empty array", `[]`, 0},
		{"null", `null`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			})
			got, err := c.ClickToEarn(context.Background())
			if err != nil {
				t.Fatalf("ClickToEarn: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAdminResource(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		writeJSON(w, http.StatusOK, map[string]any{"id": 1})
	})
	ctx := context.Background()

	if _, err := c.Resource("bogus"); err == nil {
		t.Error("unknown resource accepted")
	}
	res, err := c.Resource(ResourceCoupons)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := res.Update(ctx, "7", map[string]any{"code": "X"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/api/admin/coupons/7" {
		t.Errorf("%s %s", gotMethod, gotPath)
	}
	if err := res.Delete(ctx, "7"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s", gotMethod)
	}
}

func TestAdminPath(t *testing.T) {
	tests := map[string]string{
		"/users":       "/admin/users",
		"users":        "/admin/users",
		"/admin/users": "/admin/users",
		"/admin":       "/admin",
		"/administer":  "/admin/administer",
	}
	for in, want := range tests {
		if got := AdminPath(in); got != want {
			t.Errorf("AdminPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
		http.NotFound(w, r)
	})
	if !c.Health(context.Background()) {
		t.Error("Health() = false")
	}
}
