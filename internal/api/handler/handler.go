package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/service"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

// Handler HTTP 处理器
type Handler struct {
	postService service.PostService
}

func NewHandler(postService service.PostService) *Handler {
	return &Handler{postService: postService}
}

// RegisterValidations 在 gin 的校验器上注册 notblank 等规则，绑定前必须调用
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}
	return model.RegisterValidations(v)
}

// writeError 按错误类型映射状态码
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrBadRequest):
		response.BadRequest(c, clientMessage(err, model.ErrBadRequest))
	case errors.Is(err, model.ErrNotFound):
		response.NotFound(c, clientMessage(err, model.ErrNotFound))
	default:
		response.InternalError(c, err)
	}
}

// clientMessage 去掉哨兵错误前缀，只保留具体原因
func clientMessage(err, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}
