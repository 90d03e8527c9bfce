package models

import "time"

type Recording struct {
	ID        string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	MeetingID string `gorm:"column:meeting_id;type:uuid;index" json:"meeting_id"`
	UserID    string `gorm:"column:user_id;type:uuid;index" json:"user_id"`

	ObjectPath string `gorm:"column:object_path;type:text" json:"object_path"`
	MimeType   string `gorm:"column:mime_type;type:text" json:"mime_type"`
	Size       int64  `gorm:"column:size;type:bigint" json:"size"`

	UploadedAt time.Time `gorm:"column:uploaded_at;type:timestamptz" json:"uploaded_at"`
}

func (Recording) TableName() string { return "recordings" }
