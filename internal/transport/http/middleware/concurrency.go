package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"ethio-home/internal/transport/http/ez"
)

// ConcurrencyLimit 同时处理的请求数上限；排队超过 wait 返回 503
func ConcurrencyLimit(max int64, wait time.Duration) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if !sem.TryAcquire(1) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
			err := sem.Acquire(ctx, 1)
			cancel()
			if err != nil {
				reject("busy")
				c.Header("Retry-After", "1")
				ez.Fail(c, &ez.AErr{Code: http.StatusServiceUnavailable, Msg: "Server busy, please retry"})
				return
			}
		}
		defer sem.Release(1)
		c.Next()
	}
}
