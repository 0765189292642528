package models

import (
	"time"

	"github.com/google/uuid"
)

type Folder struct {
	BaseModel
	Name      string     `json:"name" gorm:"type:varchar(255);not null"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;not null;index"`
	ParentID  *uuid.UUID `json:"parentId" gorm:"type:uuid;index"`
	Trashed   bool       `json:"trashed" gorm:"not null;default:false;index"`
	TrashedAt *time.Time `json:"trashedAt"`

	Parent     *FolderRef `json:"parent,omitempty" gorm:"-"`
	ChildCount int64      `json:"childCount" gorm:"-"`
	FileCount  int64      `json:"fileCount" gorm:"-"`
}

// FolderRef is the {id, name} projection used for parents and breadcrumbs.
type FolderRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (f *Folder) Ref() FolderRef {
	return FolderRef{ID: f.ID, Name: f.Name}
}
