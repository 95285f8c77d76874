package http

import "github.com/gin-gonic/gin"

// ErrorResponse 以统一的 {"error": ...} 结构返回错误响应。
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// SuccessResponse 返回成功响应，data 原样序列化为 JSON。
func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
