package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// TestRequestID はRequestIDミドルウェアを検証する。
func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("X-Request-IDが無い場合UUIDが生成されること", func(t *testing.T) {
		t.Parallel()

		var captured string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			captured = GetRequestID(c)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if _, err := uuid.Parse(captured); err != nil {
			t.Errorf("リクエストID %q がUUIDではない: %v", captured, err)
		}
		if got := w.Header().Get(HeaderRequestID); got != captured {
			t.Errorf("X-Request-ID = %q, want %q", got, captured)
		}
	})

	t.Run("クライアントが指定したX-Request-IDを引き継ぐこと", func(t *testing.T) {
		t.Parallel()

		var captured string
		router := gin.New()
		router.Use(RequestID())
		router.GET("/test", func(c *gin.Context) {
			captured = GetRequestID(c)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderRequestID, "req-from-client")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if captured != "req-from-client" {
			t.Errorf("GetRequestID() = %q, want %q", captured, "req-from-client")
		}
		if got := w.Header().Get(HeaderRequestID); got != "req-from-client" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-from-client")
		}
	})

	t.Run("ミドルウェア未適用の場合はハイフンが返ること", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		if got := GetRequestID(c); got != "-" {
			t.Errorf("GetRequestID() = %q, want %q", got, "-")
		}
	})
}
