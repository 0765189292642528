package models

import "github.com/google/uuid"

type SharePermission string

const (
	SharePermissionView SharePermission = "VIEW"
	SharePermissionEdit SharePermission = "EDIT"
)

func (p SharePermission) Valid() bool {
	return p == SharePermissionView || p == SharePermissionEdit
}

// FileShare grants one user access to one file. (file_id, user_id) is unique.
type FileShare struct {
	BaseModel
	FileID     uuid.UUID       `json:"fileId" gorm:"type:uuid;not null;uniqueIndex:idx_file_shares_file_user"`
	UserID     uuid.UUID       `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_file_shares_file_user;index"`
	Permission SharePermission `json:"permission" gorm:"type:varchar(10);not null;default:'VIEW'"`

	File *File        `json:"file,omitempty" gorm:"foreignKey:FileID;references:ID"`
	User *UserSummary `json:"user,omitempty" gorm:"-"`
}

func (FileShare) TableName() string {
	return "file_shares"
}
