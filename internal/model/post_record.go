package model

import (
	"strconv"
	"time"
)

// PostRecord posts 表（SQL 存储）
type PostRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"type:varchar(255);not null"`
	Content   string    `gorm:"type:text;not null"`
	Category  string    `gorm:"type:varchar(128);index;not null"`
	Tags      []string  `gorm:"serializer:json;type:text;not null"`
	CreatedOn time.Time `gorm:"not null"`
	UpdatedOn time.Time `gorm:"not null"`
}

func (PostRecord) TableName() string { return "posts" }

// ToPost 转为对外模型
func (r *PostRecord) ToPost() *Post {
	created := Instant(r.CreatedOn)
	return &Post{
		ID:        PostID(strconv.FormatUint(uint64(r.ID), 10)),
		Title:     r.Title,
		Content:   r.Content,
		Category:  r.Category,
		Tags:      r.Tags,
		CreatedOn: &created,
		UpdatedOn: Instant(r.UpdatedOn),
	}
}
