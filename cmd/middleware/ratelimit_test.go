package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
)

func newEngine(l *Limiters) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(l))
	r.GET("/ping", func(c *ginext.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func do(r http.Handler, user string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitPerUser(t *testing.T) {
	r := newEngine(NewLimiters(0.001, 2))

	for i := 0; i < 2; i++ {
		if code := do(r, "1"); code != http.StatusOK {
			t.Fatalf("request %d: got %d", i, code)
		}
	}
	if code := do(r, "1"); code != http.StatusTooManyRequests {
		t.Errorf("third request: got %d, want 429", code)
	}
	if code := do(r, "2"); code != http.StatusOK {
		t.Errorf("other user: got %d, want 200", code)
	}
}

func TestRateLimitFallsBackToIP(t *testing.T) {
	r := newEngine(NewLimiters(0.001, 1))

	if code := do(r, ""); code != http.StatusOK {
		t.Fatalf("first: got %d", code)
	}
	if code := do(r, ""); code != http.StatusTooManyRequests {
		t.Errorf("second: got %d, want 429", code)
	}
}

func TestLimitersCleanup(t *testing.T) {
	l := NewLimiters(1, 1, WithIdleTTL(time.Millisecond))
	l.get("a")
	l.get("b")

	time.Sleep(5 * time.Millisecond)
	l.Cleanup()

	if n := l.size(); n != 0 {
		t.Errorf("entries after cleanup: %d", n)
	}
}
