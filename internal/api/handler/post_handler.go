package handler

import (
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/pkg/response"
)

const requiredFieldsMessage = "title, content, category, and at least 1 tag are required"

// ListPosts 查询全部文章
// @Summary 文章列表
// @Tags 文章
// @Produce json
// @Success 200 {array} model.Post
// @Failure 500 {object} response.Response
// @Router /api/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.postService.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, posts)
}

// FilterPosts 按标签过滤
// @Summary 按标签过滤文章
// @Tags 文章
// @Produce json
// @Param tag query string true "标签"
// @Success 200 {array} model.Post
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts/filter [get]
func (h *Handler) FilterPosts(c *gin.Context) {
	posts, err := h.postService.FilterByTag(c.Request.Context(), c.Query("tag"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, posts)
}

// GetPost 查询单篇文章
// @Summary 查询文章
// @Tags 文章
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} model.Post
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, post)
}

// CreatePost 创建文章
// @Summary 创建文章
// @Tags 文章
// @Accept json
// @Produce json
// @Param request body model.PostInput true "文章内容"
// @Success 201 {object} model.Post
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req model.PostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindMessage(err))
		return
	}
	post, err := h.postService.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, "/api/posts/"+post.ID.String(), post)
}

// UpdatePost 部分更新文章
// @Summary 更新文章
// @Description 只更新请求中出现的字段，id 与创建时间不可修改
// @Tags 文章
// @Accept json
// @Produce json
// @Param id path string true "文章ID"
// @Param request body model.PostPatch true "需要更新的字段"
// @Success 200 {object} model.Post
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var patch model.PostPatch
	// 空请求体视为空补丁，只刷新 updatedOn
	if err := c.ShouldBindJSON(&patch); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, bindMessage(err))
		return
	}
	post, err := h.postService.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, post)
}

// DeletePost 删除文章
// @Summary 删除文章
// @Tags 文章
// @Produce json
// @Param id path string true "文章ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	id := c.Param("id")
	if err := h.postService.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, fmt.Sprintf("post %s deleted", id))
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /healthz [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"ok": true, "backend": h.postService.Backend()})
}

// TestRoute 连通性测试
// @Summary 测试路由
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Router /test [get]
func (h *Handler) TestRoute(c *gin.Context) {
	response.Message(c, "test route success!")
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return requiredFieldsMessage
	}
	return "invalid JSON body: " + err.Error()
}
