package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name         string   `json:"name" gorm:"type:varchar(255);not null"`
	PasswordHash *string  `json:"-" gorm:"type:text"`
	Image        *string  `json:"image,omitempty" gorm:"type:text"`
	Files        []File   `json:"-" gorm:"foreignKey:UserID"`
	Folders      []Folder `json:"-" gorm:"foreignKey:UserID"`
}

// UserSummary is the public projection of a user embedded in share responses.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Image *string   `json:"image,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

// NormalizeEmail trims and lower-cases an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session backs a bearer token; deleting the row revokes the token.
type Session struct {
	BaseModel
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;index"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	UserAgent string    `json:"userAgent,omitempty" gorm:"type:text"`
	IPAddress string    `json:"ipAddress,omitempty" gorm:"type:varchar(45)"`
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
