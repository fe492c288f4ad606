package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

var secret = []byte("test-secret")

func router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/me", Auth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"project": ProjectID(c), "user": UserID(c)})
	})
	return r
}

func get(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := router()
	token, err := IssueToken(secret, "p1", "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	w := get(r, "Bearer "+token)
	if w.Code != http.StatusOK || w.Body.String() != `{"project":"p1","user":"user-1"}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}

	expired, _ := IssueToken(secret, "p1", "", -time.Minute)
	foreign, _ := IssueToken([]byte("other"), "p1", "", time.Hour)
	noProject, _ := IssueToken(secret, "", "", time.Hour)
	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"expired":    "Bearer " + expired,
		"bad sig":    "Bearer " + foreign,
		"no project": "Bearer " + noProject,
	} {
		if w := get(r, header); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, w.Code)
		}
	}
}
