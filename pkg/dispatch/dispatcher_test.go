package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/taskapi/pkg/middleware"
	"github.com/nao1215/taskapi/pkg/token"
)

// newTestEngine はディスパッチャをNoRouteに登録したGinエンジンを返す。
func newTestEngine(d *Dispatcher) *gin.Engine {
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(d.Handle)
	return r
}

// serve はリクエストを送信してレスポンスを返す。
func serve(r http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// errorBody はエラーレスポンスのerrorフィールドを返す。
func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスのパースに失敗: %v (body=%s)", err, w.Body.String())
	}
	return body["error"]
}

// TestDispatcherHandle はディスパッチの全体的な振る舞いを検証する。
func TestDispatcherHandle(t *testing.T) {
	t.Parallel()

	valid := issueToken(t, testSecret, token.Claims{"user": "alice", "exp": float64(time.Now().Add(time.Hour).Unix())})

	t.Run("認証不要のルートがパラメータ付きで呼び出されること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			c.JSON(http.StatusOK, gin.H{"id": req.Param("id"), "principal": req.Principal == nil})
			return nil
		})
		r := newTestEngine(NewDispatcher(table, NewGate(testSecret)))

		w := serve(r, http.MethodGet, "/tasks/42", "")
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if body["id"] != "42" {
			t.Errorf("id = %v, want %q", body["id"], "42")
		}
		if body["principal"] != true {
			t.Errorf("認証不要のルートでPrincipalが設定されている")
		}
	})

	t.Run("認証が必要なルートにプリンシパルが渡されること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks", http.MethodPost, true, func(c *gin.Context, req *Request) error {
			c.JSON(http.StatusCreated, gin.H{"user": req.Subject()})
			return nil
		})
		r := newTestEngine(NewDispatcher(table, NewGate(testSecret)))

		w := serve(r, http.MethodPost, "/tasks", "Bearer "+valid)
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if body["user"] != "alice" {
			t.Errorf("user = %q, want %q", body["user"], "alice")
		}
	})

	t.Run("一致するルートが無い場合404を返すこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks", http.MethodGet, false, noopHandler)
		r := newTestEngine(NewDispatcher(table, NewGate(testSecret)))

		w := serve(r, http.MethodGet, "/unknown", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		if got := errorBody(t, w); got != "Route not found" {
			t.Errorf("error = %q, want %q", got, "Route not found")
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
	})

	t.Run("メソッドが許可されていない場合405とAllowヘッダーを返すこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodGet, false, noopHandler)
		table.MustRegister("tasks/{id}", http.MethodDelete, true, noopHandler)
		r := newTestEngine(NewDispatcher(table, NewGate(testSecret)))

		w := serve(r, http.MethodPut, "/tasks/1", "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusMethodNotAllowed)
		}
		if got := w.Header().Get("Allow"); got != "DELETE, GET" {
			t.Errorf("Allow = %q, want %q", got, "DELETE, GET")
		}
		if got := errorBody(t, w); got != "Method not allowed" {
			t.Errorf("error = %q, want %q", got, "Method not allowed")
		}
	})

	t.Run("認証に失敗した場合ハンドラが呼ばれないこと", func(t *testing.T) {
		t.Parallel()

		forged := issueToken(t, "attacker-secret", token.Claims{"user": "mallory"})
		tests := []struct {
			name          string
			secret        string
			authorization string
			status        int
			message       string
		}{
			{name: "ヘッダー無し", secret: testSecret, authorization: "", status: http.StatusUnauthorized, message: "Authorization header missing"},
			{name: "形式不正", secret: testSecret, authorization: "Token " + valid, status: http.StatusBadRequest, message: "Invalid authorization token format"},
			{name: "空白無し", secret: testSecret, authorization: "Bearer", status: http.StatusBadRequest, message: "Invalid authorization format, expected 'Bearer token'"},
			{name: "署名不正", secret: testSecret, authorization: "Bearer " + forged, status: http.StatusUnauthorized, message: "Invalid token: signature verification failed"},
			{name: "トークン不正", secret: testSecret, authorization: "Bearer a.b", status: http.StatusUnauthorized, message: "Invalid token: malformed token"},
			{name: "秘密鍵未設定", secret: "", authorization: "Bearer " + valid, status: http.StatusInternalServerError, message: "JWT_SECRET is not set in the environment."},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				called := false
				table := NewTable()
				table.MustRegister("tasks", http.MethodPost, true, func(c *gin.Context, req *Request) error {
					called = true
					c.Status(http.StatusCreated)
					return nil
				})
				r := newTestEngine(NewDispatcher(table, NewGate(tt.secret)))

				w := serve(r, http.MethodPost, "/tasks", tt.authorization)
				if w.Code != tt.status {
					t.Errorf("ステータスコード = %d, want %d", w.Code, tt.status)
				}
				if got := errorBody(t, w); got != tt.message {
					t.Errorf("error = %q, want %q", got, tt.message)
				}
				if called {
					t.Error("認証に失敗したのにハンドラが呼び出された")
				}
			})
		}
	})

	t.Run("ハンドラがErrorを返した場合そのステータスで応答すること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			return Errorf(http.StatusNotFound, "Task with ID %s not found!", req.Param("id"))
		})
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodGet, "/tasks/7", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		if got := errorBody(t, w); got != "Task with ID 7 not found!" {
			t.Errorf("error = %q, want %q", got, "Task with ID 7 not found!")
		}
	})

	t.Run("ハンドラが通常のエラーを返した場合500を返すこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			return errors.New("database is locked")
		})
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodGet, "/tasks", "")
		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got := errorBody(t, w); got != "database is locked" {
			t.Errorf("error = %q, want %q", got, "database is locked")
		}
	})

	t.Run("書き込み後のエラーでレスポンスを上書きしないこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			c.JSON(http.StatusOK, gin.H{"tasks": []string{}})
			return errors.New("late failure")
		})
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodGet, "/tasks", "")
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if strings.Contains(w.Body.String(), "late failure") {
			t.Errorf("エラーがレスポンスに追記された: %s", w.Body.String())
		}
	})

	t.Run("何も書き込まずに成功した場合200と空のJSONを返すこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("ping", http.MethodGet, false, noopHandler)
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodGet, "/ping", "")
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if got := w.Body.String(); got != "{}" {
			t.Errorf("ボディ = %q, want %q", got, "{}")
		}
		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
	})

	t.Run("エンコードされたスラッシュを含むセグメントがプレースホルダーに渡されること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			c.JSON(http.StatusOK, gin.H{"id": req.Param("id")})
			return nil
		})
		r := newTestEngine(NewDispatcher(table, nil))

		tests := []struct {
			path string
			want string
		}{
			{path: "/tasks/a%2Fb", want: "a/b"},
			{path: "/tasks/%37", want: "7"},
			{path: "/tasks/a%20b", want: "a b"},
		}
		for _, tt := range tests {
			w := serve(r, http.MethodGet, tt.path, "")
			if w.Code != http.StatusOK {
				t.Fatalf("%s: ステータスコード = %d, want %d (body=%s)", tt.path, w.Code, http.StatusOK, w.Body.String())
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("レスポンスのパースに失敗: %v", err)
			}
			if body["id"] != tt.want {
				t.Errorf("%s: id = %q, want %q", tt.path, body["id"], tt.want)
			}
		}
	})

	t.Run("ステータスのみ設定した場合そのステータスを返すこと", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodDelete, false, func(c *gin.Context, req *Request) error {
			c.Status(http.StatusNoContent)
			return nil
		})
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodDelete, "/tasks/1", "")
		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
	})

	t.Run("先に登録したルートが優先されること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("tasks/{id}", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			c.String(http.StatusOK, "by-id")
			return nil
		})
		table.MustRegister("tasks/summary", http.MethodGet, false, func(c *gin.Context, req *Request) error {
			c.String(http.StatusOK, "summary")
			return nil
		})
		r := newTestEngine(NewDispatcher(table, nil))

		w := serve(r, http.MethodGet, "/tasks/summary", "")
		if got := w.Body.String(); got != "by-id" {
			t.Errorf("ボディ = %q, want %q", got, "by-id")
		}
	})

	t.Run("Ginのネイティブルートはディスパッチャを経由しないこと", func(t *testing.T) {
		t.Parallel()

		r := newTestEngine(NewDispatcher(NewTable(), nil))

		w := serve(r, http.MethodGet, "/health", "")
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("パニックしたハンドラはRecoveryで500になること", func(t *testing.T) {
		t.Parallel()

		table := NewTable()
		table.MustRegister("boom", MethodAny, false, func(c *gin.Context, req *Request) error {
			panic("boom")
		})
		r := gin.New()
		r.Use(middleware.Recovery())
		r.NoRoute(NewDispatcher(table, nil).Handle)

		w := serve(r, http.MethodPost, "/boom", "")
		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if got := errorBody(t, w); got != "Internal server error" {
			t.Errorf("error = %q, want %q", got, "Internal server error")
		}
	})
}

// TestRequest はRequestのアクセサを検証する。
func TestRequest(t *testing.T) {
	t.Parallel()

	t.Run("存在しないパラメータは空文字列を返すこと", func(t *testing.T) {
		t.Parallel()

		req := &Request{Params: Params{"id": "1"}}
		if got := req.Param("missing"); got != "" {
			t.Errorf("Param() = %q, want empty", got)
		}
		if got := req.Subject(); got != "" {
			t.Errorf("Subject() = %q, want empty", got)
		}
	})
}

// TestErrorKindString はエラー分類の文字列表現を検証する。
func TestErrorKindString(t *testing.T) {
	t.Parallel()

	if got := KindMethodNotAllowed.String(); got != "method_not_allowed" {
		t.Errorf("String() = %q, want %q", got, "method_not_allowed")
	}
	if got := NewError(http.StatusConflict, "conflict").Error(); got != "conflict" {
		t.Errorf("Error() = %q, want %q", got, "conflict")
	}
}

// TestOutcomeKindString は認証結果の種類の文字列表現を検証する。
func TestOutcomeKindString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind OutcomeKind
		want string
	}{
		{kind: OutcomeAuthenticated, want: "authenticated"},
		{kind: OutcomeMissing, want: "missing"},
		{kind: OutcomeMalformed, want: "malformed"},
		{kind: OutcomeInvalidSignature, want: "invalid_signature"},
		{kind: OutcomeInvalidToken, want: "invalid_token"},
		{kind: OutcomeUnconfigured, want: "unconfigured"},
		{kind: OutcomeKind(99), want: "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("OutcomeKind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}
