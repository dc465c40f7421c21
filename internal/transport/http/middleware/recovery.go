package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "ethio-home/internal/transport/http/response"
)

// Recovered 交给 ginzap.CustomRecoveryWithZap：日志由 ginzap 打，这里只负责响应体
func Recovered(c *gin.Context, _ any) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp.Error(http.StatusInternalServerError, ""))
}
