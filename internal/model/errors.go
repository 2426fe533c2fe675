package model

import "errors"

// 错误分类：BadRequest / NotFound，其余均视为内部错误
var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("post not found")
)
