package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ethio-home/internal/transport/http/ez"
)

const msgTooLarge = "Request body too large"

// MaxBodyBytes 声明了 Content-Length 的超限请求直接 413；
// 分块上传在读取时由 MaxBytesReader 截断，绑定 / 上传环节再转成 413
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			reject("too_large")
			ez.Fail(c, &ez.AErr{Code: http.StatusRequestEntityTooLarge, Msg: msgTooLarge})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
