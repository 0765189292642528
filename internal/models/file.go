package models

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	BaseModel
	Name             string     `json:"name" gorm:"type:varchar(255);not null"`
	Type             string     `json:"type" gorm:"type:varchar(255);not null"`
	Size             int64      `json:"size" gorm:"not null"`
	URL              string     `json:"url" gorm:"type:text;not null"`
	StoragePath      string     `json:"storagePath" gorm:"type:text;not null"`
	BlobID           string     `json:"blobId" gorm:"type:text;not null"`
	UserID           uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	FolderID         *uuid.UUID `json:"folderId" gorm:"type:uuid;index"`
	Starred          bool       `json:"starred" gorm:"not null;default:false;index"`
	Trashed          bool       `json:"trashed" gorm:"not null;default:false;index"`
	TrashedAt        *time.Time `json:"trashedAt"`
	LastAccessedAt   *time.Time `json:"lastAccessedAt" gorm:"index"`
	PurgeRequestedAt *time.Time `json:"-" gorm:"index"`

	Folder *FolderRef   `json:"folder,omitempty" gorm:"-"`
	Owner  *UserSummary `json:"owner,omitempty" gorm:"-"`
	Shares []FileShare  `json:"-" gorm:"foreignKey:FileID"`
}
