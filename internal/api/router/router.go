package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/gin-blog/config"
	_ "github.com/d60-Lab/gin-blog/docs"
	"github.com/d60-Lab/gin-blog/internal/api/handler"
	"github.com/d60-Lab/gin-blog/internal/middleware"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// Setup 构建 gin 引擎并注册全部路由
func Setup(cfg *config.Config, postService service.PostService) (*gin.Engine, error) {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	if err := handler.RegisterValidations(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Sentry()...)
	r.Use(middleware.RequestID(), middleware.Logger())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	h := handler.NewHandler(postService)

	r.GET("/test", h.TestRoute)
	r.GET("/healthz", h.Health)
	if cfg.Server.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	posts := r.Group("/api/posts")
	{
		posts.GET("", h.ListPosts)
		posts.GET("/filter", h.FilterPosts)
		posts.GET("/:id", h.GetPost)
		posts.POST("", h.CreatePost)
		posts.PUT("/:id", h.UpdatePost)
		posts.DELETE("/:id", h.DeletePost)
	}

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "route "+c.Request.Method+" "+c.Request.URL.Path+" not found")
	})
	return r, nil
}
