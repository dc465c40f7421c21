package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ethio-home/internal/transport/http/ez"
)

// Timeout 给 DB / 支付网关调用一个截止时间；skip 按路由模板豁免（如 webhook）
func Timeout(d time.Duration, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range skip {
			if c.FullPath() == p {
				c.Next()
				return
			}
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			reject("timeout")
			ez.Fail(c, &ez.AErr{Code: http.StatusGatewayTimeout, Msg: "Request timed out"})
		}
	}
}
