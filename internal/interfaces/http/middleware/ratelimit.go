package middleware

import (
	"net/http"
	"time"

	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
)

// RateLimit limits each client IP to limit requests per window. Branch
// terminals sharing an IP are told apart by the X-Branch-ID header.
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return RateLimitWith(httprate.NewRateLimiter(limit, window), rateLimitKey(httprate.KeyByIP, keyByBranch))
}

// RateLimitWith applies an existing limiter using key to bucket requests
func RateLimitWith(limiter *httprate.RateLimiter, key httprate.KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k, err := key(c.Request)
		if err != nil {
			c.Next()
			return
		}
		if limiter.OnLimit(c.Writer, c.Request, k) {
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
					dto.ErrCodeRateLimited,
					"Too many requests. Please try again later.",
					c.GetString(RequestIDKey),
				))
				return
			}
			c.Abort()
			return
		}
		c.Next()
	}
}

func keyByBranch(r *http.Request) (string, error) {
	return r.Header.Get(BranchIDHeader), nil
}

// rateLimitKey joins the parts of a composite key
func rateLimitKey(fns ...httprate.KeyFunc) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		var key string
		for _, fn := range fns {
			k, err := fn(r)
			if err != nil {
				return "", err
			}
			key += k + ":"
		}
		return key, nil
	}
}
