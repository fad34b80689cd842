package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func guarded(opts *Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(opts))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func request(r *gin.Engine, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestEmptyTokenPassThrough(t *testing.T) {
	r := guarded(DefaultOptions(""))
	if code := request(r, "", ""); code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
}

func TestHeaderToken(t *testing.T) {
	r := guarded(DefaultOptions("s3cret"))
	if code := request(r, "authorization", "s3cret"); code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
}

func TestBearerToken(t *testing.T) {
	r := guarded(DefaultOptions("s3cret"))
	if code := request(r, "Authorization", "Bearer s3cret"); code != http.StatusOK {
		t.Fatalf("bearer code = %d, want 200", code)
	}
}

func TestRejectsWrongOrMissingToken(t *testing.T) {
	r := guarded(DefaultOptions("s3cret"))
	if code := request(r, "", ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token code = %d, want 401", code)
	}
	if code := request(r, "authorization", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token code = %d, want 401", code)
	}
	if code := request(r, "Authorization", "Bearer wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong bearer code = %d, want 401", code)
	}
}
