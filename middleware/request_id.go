package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 请求ID透传的 Header 名
const RequestIDHeader = "X-Request-ID"

// RequestID 请求ID中间件
// 客户端未携带时生成 uuid，写入上下文与响应头，便于日志关联
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID 从上下文获取请求ID
func GetRequestID(c *gin.Context) string {
	if v, exists := c.Get("requestID"); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
