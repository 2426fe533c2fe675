package middleware

import (
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

// Sentry 上报 panic，并把 handler 记录的内部错误逐个上报
//
// 未初始化 sentry 时 hub 没有 client，上报为空操作。
func Sentry() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		sentrygin.New(sentrygin.Options{Repanic: true}),
		captureErrors,
	}
}

func captureErrors(c *gin.Context) {
	c.Next()

	if len(c.Errors) == 0 || c.Writer.Status() < 500 {
		return
	}
	hub := sentrygin.GetHubFromContext(c)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("request_id", GetRequestID(c))
		scope.SetTag("route", c.FullPath())
		for _, e := range c.Errors {
			hub.CaptureException(e.Err)
		}
	})
}
