package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/m-mizutani/gt"
	"github.com/redis/go-redis/v9"

	"udaay-be/middlewares"
	authUtils "udaay-be/utils"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(middlewares.UserIDKey), "role": c.GetString(middlewares.RoleKey)})
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := authUtils.GenerateAndSetToken(secret, userID, role, time.Hour)
	gt.NoError(t, err).Required()
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", middlewares.AuthMiddleware(secret), whoami)
	r.GET("/officer", middlewares.AuthMiddleware(secret), middlewares.RequireRole(authUtils.RoleOfficer), whoami)

	do := func(path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if mutate != nil {
			mutate(req)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("bearer header", func(t *testing.T) {
		w := do("/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, "u1", "")) })
		gt.Equal(t, w.Code, http.StatusOK)
		gt.S(t, w.Body.String()).Contains(`"user_id":"u1"`)
		gt.S(t, w.Body.String()).Contains(`"role":"citizen"`)
	})

	t.Run("cookie", func(t *testing.T) {
		w := do("/me", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: middlewares.AuthCookieName, Value: token(t, "u2", authUtils.RoleCitizen)})
		})
		gt.Equal(t, w.Code, http.StatusOK)
		gt.S(t, w.Body.String()).Contains(`"user_id":"u2"`)
	})

	t.Run("missing token", func(t *testing.T) {
		gt.Equal(t, do("/me", nil).Code, http.StatusUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := authUtils.GenerateAndSetToken("other", "u1", "", time.Hour)
		gt.NoError(t, err).Required()
		w := do("/me", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+other) })
		gt.Equal(t, w.Code, http.StatusUnauthorized)
	})

	t.Run("officer route", func(t *testing.T) {
		w := do("/officer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, "u1", authUtils.RoleCitizen)) })
		gt.Equal(t, w.Code, http.StatusForbidden)

		w = do("/officer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token(t, "o1", authUtils.RoleOfficer)) })
		gt.Equal(t, w.Code, http.StatusOK)
	})
}

func TestIssueRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.POST("/submit", middlewares.AuthMiddleware(secret), middlewares.IssueRateLimiter(client, "issue-limit", 2), whoami)

	submit := func(userID string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, userID, ""))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	gt.Equal(t, submit("u1"), http.StatusOK)
	gt.Equal(t, submit("u1"), http.StatusOK)
	gt.Equal(t, submit("u1"), http.StatusTooManyRequests)
	gt.Equal(t, submit("u2"), http.StatusOK)

	gt.True(t, mr.TTL("issue-limit:u1") > 23*time.Hour)

	mr.FastForward(25 * time.Hour)
	gt.Equal(t, submit("u1"), http.StatusOK)
}

func TestIssueRateLimiterDisabled(t *testing.T) {
	r := gin.New()
	r.POST("/submit", middlewares.IssueRateLimiter(nil, "issue-limit", 1), whoami)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/submit", nil))
		gt.Equal(t, w.Code, http.StatusOK)
	}
}
