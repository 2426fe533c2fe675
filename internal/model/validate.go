package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// RegisterValidations 注册模型用到的自定义规则，gin 的校验器也需要调用
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("notblank", validators.NotBlank)
}

// Validate 校验必填字段，失败时包装 ErrBadRequest
func (in PostInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: title, content, category, and at least 1 tag are required", ErrBadRequest)
	}
	return nil
}

// NewPost 由创建请求构造文章，id 与时间戳由存储填写
func (in PostInput) NewPost() *Post {
	return &Post{
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Tags:     append([]string(nil), in.Tags...),
	}
}
