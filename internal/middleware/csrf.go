package middleware

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/errors"
)

// CSRFHeader is the header clients echo the anti-forgery token in.
const CSRFHeader = "X-CSRF-Token"

type ginContextKey struct{}

// CSRF validates the anti-forgery token on unsafe methods and marks the
// request verified. Safe methods are verified too so that the token can be
// issued.
func CSRF(cfg config.CSRFConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Set(ContextVerified, true)
			c.Next()
		}
	}

	opts := []csrf.Option{
		csrf.Secure(cfg.Secure),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFHeader),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	key := sha256.Sum256([]byte(cfg.AuthKey))
	protect := csrf.Protect(key[:], opts...)

	return func(c *gin.Context) {
		passed := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Set(ContextVerified, true)
			c.Next()
		})

		req := c.Request.WithContext(context.WithValue(c.Request.Context(), ginContextKey{}, c))
		if !cfg.Secure {
			req = csrf.PlaintextHTTPRequest(req)
		}
		protect(next).ServeHTTP(c.Writer, req)

		if !passed {
			c.Abort()
		}
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	err := errors.New(errors.ErrRequestNotVerified, "Invalid or missing anti-forgery token.")
	if reason := csrf.FailureReason(r); reason != nil {
		err.Cause = reason
	}
	if c, ok := r.Context().Value(ginContextKey{}).(*gin.Context); ok {
		Abort(c, err)
		return
	}
	http.Error(w, err.Message, http.StatusForbidden)
}

// CSRFToken returns the token to echo back in CSRFHeader.
func CSRFToken(c *gin.Context) string {
	return csrf.Token(c.Request)
}
