package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuthService struct {
	DB     *gorm.DB
	Access *AccessService
}

func NewAuthService(db *gorm.DB, access *AccessService) *AuthService {
	return &AuthService{DB: db, Access: access}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ClientInfo is recorded on the session row.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type AuthResult struct {
	Token   string          `json:"token"`
	User    *models.User    `json:"user"`
	Session *models.Session `json:"-"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (*AuthResult, error) {
	email := models.NormalizeEmail(in.Email)

	db, cancel := s.Access.db(ctx)
	defer cancel()

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, dbError(err)
	}
	if count > 0 {
		return nil, utils.ErrEmailTaken
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: &hash,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.ErrEmailTaken
		}
		return nil, dbError(err)
	}

	return s.issue(db, &user, client)
}

func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (*AuthResult, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, lookupError(err, utils.ErrInvalidCredentials)
	}
	if user.PasswordHash == nil || !utils.CheckPassword(password, *user.PasswordHash) {
		return nil, utils.ErrInvalidCredentials
	}

	return s.issue(db, &user, client)
}

func (s *AuthService) issue(db *gorm.DB, user *models.User, client ClientInfo) (*AuthResult, error) {
	session := models.Session{
		UserID:    user.ID,
		ExpiresAt: time.Now().UTC().Add(utils.TokenTTL()),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if err := db.Create(&session).Error; err != nil {
		return nil, dbError(err)
	}

	token, err := utils.GenerateToken(user, &session)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user, Session: &session}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	db, cancel := s.Access.db(ctx)
	defer cancel()
	err := db.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&models.Session{}).Error
	return dbError(err)
}

// ResolveSession returns the user behind a live session. Any miss is
// reported as ErrUnauthorized.
func (s *AuthService) ResolveSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.User, *models.Session, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	var session models.Session
	if err := db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		return nil, nil, lookupError(err, utils.ErrUnauthorized)
	}
	if session.Expired(time.Now().UTC()) {
		return nil, nil, utils.ErrUnauthorized
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, nil, lookupError(err, utils.ErrUnauthorized)
	}
	return &user, &session, nil
}

// PurgeExpiredSessions deletes session rows past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()
	result := db.Where("expires_at <= ?", time.Now().UTC()).Delete(&models.Session{})
	return result.RowsAffected, dbError(result.Error)
}
