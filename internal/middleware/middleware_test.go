package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth struct {
	service.AuthService
}

func (fakeAuth) ValidateToken(_ context.Context, token string) (*service.TokenClaims, error) {
	switch token {
	case "good":
		return &service.TokenClaims{UserID: 7, Username: "alice"}, nil
	case "old":
		return nil, errors.New(errors.ErrTokenExpired)
	default:
		return nil, errors.New(errors.ErrTokenInvalid)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) errors.ErrorCode {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code errors.ErrorCode `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", NewAuthMiddleware(fakeAuth{}).RequireAuth(), func(c *gin.Context) {
		id, _ := GetUserID(c)
		name, _ := GetUsername(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
	})

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
		code   errors.ErrorCode
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK, 0},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer good") }, http.StatusOK, 0},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: "good"}) }, http.StatusOK, 0},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=good" }, http.StatusOK, 0},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, errors.ErrAuthentication},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer old") }, http.StatusUnauthorized, errors.ErrTokenExpired},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, errors.ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"name":"alice"}`, w.Body.String())
				return
			}
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", NewAuthMiddleware(fakeAuth{}).OptionalAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"auth": IsAuthenticated(c)})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?token=nope", nil))
	assert.JSONEq(t, `{"auth":false}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?token=good", nil))
	assert.JSONEq(t, `{"auth":true}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "3f1c2b9e-8d4a-4e57-9a61-0c2f5d7e8b90")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "3f1c2b9e-8d4a-4e57-9a61-0c2f5d7e8b90", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrInternal, errorCode(t, w))
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	r := gin.New()
	r.POST("/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.9:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 0, limiter.Cleanup(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, limiter.Cleanup(time.Now().Add(time.Hour)))
}

func csrfRouter(cfg config.CSRFConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), CSRF(cfg))
	r.GET("/csrf", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": CSRFToken(c)})
	})
	r.POST("/act", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"verified": IsVerified(c)})
	})
	return r
}

func TestCSRF(t *testing.T) {
	r := csrfRouter(config.CSRFConfig{Enabled: true, AuthKey: "test-key"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/csrf", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// no token
	req := httptest.NewRequest(http.MethodPost, "/act", strings.NewReader("{}"))
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.ErrRequestNotVerified, errorCode(t, w))

	req = httptest.NewRequest(http.MethodPost, "/act", strings.NewReader("{}"))
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	req.Header.Set(CSRFHeader, issued.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"verified":true}`, w.Body.String())
}

func TestCSRFDisabled(t *testing.T) {
	r := csrfRouter(config.CSRFConfig{Enabled: false})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/act", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"verified":true}`, w.Body.String())
}
