package services

import (
	"context"
	"errors"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultTimeout = 10 * time.Second

// FileState selects which lifecycle state an owner-scoped file lookup accepts.
type FileState int

const (
	FileAny FileState = iota
	FileActive
	FileTrashed
)

// AccessService resolves resources on behalf of a principal. Every lookup is
// scoped by id and owner in one query, so a missing row and another user's
// row look the same to the caller.
type AccessService struct {
	DB      *gorm.DB
	Timeout time.Duration
}

func NewAccessService(db *gorm.DB, timeout time.Duration) *AccessService {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AccessService{DB: db, Timeout: timeout}
}

func (a *AccessService) db(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	return withTimeout(ctx, a.DB, a.Timeout)
}

// withTimeout bounds a unit of database work.
func withTimeout(ctx context.Context, db *gorm.DB, timeout time.Duration) (*gorm.DB, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return db.WithContext(ctx), cancel
}

func (a *AccessService) OwnedFolder(ctx context.Context, userID, folderID uuid.UUID, notFound *utils.APIError) (*models.Folder, error) {
	db, cancel := a.db(ctx)
	defer cancel()

	var folder models.Folder
	err := db.Where("id = ? AND user_id = ?", folderID, userID).First(&folder).Error
	if err != nil {
		return nil, lookupError(err, notFound)
	}
	return &folder, nil
}

func (a *AccessService) OwnedFile(ctx context.Context, userID, fileID uuid.UUID, state FileState, notFound *utils.APIError) (*models.File, error) {
	db, cancel := a.db(ctx)
	defer cancel()

	query := db.Where("id = ? AND user_id = ? AND purge_requested_at IS NULL", fileID, userID)
	switch state {
	case FileActive:
		query = query.Where("trashed = ?", false)
	case FileTrashed:
		query = query.Where("trashed = ?", true)
	}

	var file models.File
	if err := query.First(&file).Error; err != nil {
		return nil, lookupError(err, notFound)
	}
	return &file, nil
}

// AccessibleFile returns an active file the user owns or holds a grant on.
func (a *AccessService) AccessibleFile(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	db, cancel := a.db(ctx)
	defer cancel()

	var file models.File
	err := db.
		Where("files.id = ? AND files.trashed = ? AND files.purge_requested_at IS NULL", fileID, false).
		Where("(files.user_id = ? OR EXISTS (SELECT 1 FROM file_shares WHERE file_shares.file_id = files.id AND file_shares.user_id = ?))", userID, userID).
		First(&file).Error
	if err != nil {
		return nil, lookupError(err, utils.ErrFileNotFound)
	}
	return &file, nil
}

func lookupError(err error, notFound *utils.APIError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return dbError(err)
}

func dbError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.ErrTimeout.Wrap(err)
	}
	return err
}
