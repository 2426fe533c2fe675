// 成功时直接输出数据本身，失败时输出 {"error": "<message>"}
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 错误与确认消息的响应体
type Response struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// InternalMessage 内部错误对客户端只暴露这一句
const InternalMessage = "internal server error"

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Created 返回 201，Location 指向新资源
func Created(c *gin.Context, location string, data any) {
	if location != "" {
		c.Header("Location", location)
	}
	c.JSON(http.StatusCreated, data)
}

func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Message: msg})
}

func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Error: msg})
}

func NotFound(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{Error: msg})
}

func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{Error: "too many requests"})
}

// InternalError 把 err 记到 c.Errors 供日志与 sentry 中间件使用，不返回给客户端
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Error: InternalMessage})
}
