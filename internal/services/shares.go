package services

import (
	"context"
	"errors"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/pkg/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ShareService struct {
	DB     *gorm.DB
	Access *AccessService
}

func NewShareService(db *gorm.DB, access *AccessService) *ShareService {
	return &ShareService{DB: db, Access: access}
}

type ShareInput struct {
	Email      string
	Permission models.SharePermission
}

// Share grants or updates access to an owned file. created reports whether a
// new grant row was inserted.
func (s *ShareService) Share(ctx context.Context, ownerID, fileID uuid.UUID, in ShareInput) (share *models.FileShare, created bool, err error) {
	file, err := s.Access.OwnedFile(ctx, ownerID, fileID, FileActive, utils.ErrFileNotFound)
	if err != nil {
		return nil, false, err
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	var target models.User
	if err := db.Where("email = ?", models.NormalizeEmail(in.Email)).First(&target).Error; err != nil {
		return nil, false, lookupError(err, utils.ErrUserNotFound)
	}
	if target.ID == ownerID {
		return nil, false, utils.ErrShareSelf
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.FileShare
		lookup := tx.Where("file_id = ? AND user_id = ?", file.ID, target.ID).First(&existing)
		switch {
		case lookup.Error == nil:
		case errors.Is(lookup.Error, gorm.ErrRecordNotFound):
			created = true
		default:
			return lookup.Error
		}

		row := models.FileShare{FileID: file.ID, UserID: target.ID, Permission: in.Permission}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "file_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"permission": in.Permission}),
		}).Create(&row).Error
	})
	if err != nil {
		return nil, false, dbError(err)
	}

	var saved models.FileShare
	if err := db.Where("file_id = ? AND user_id = ?", file.ID, target.ID).First(&saved).Error; err != nil {
		return nil, false, dbError(err)
	}
	summary := target.Summary()
	saved.User = &summary
	return &saved, created, nil
}

func (s *ShareService) List(ctx context.Context, ownerID, fileID uuid.UUID) ([]models.FileShare, error) {
	file, err := s.Access.OwnedFile(ctx, ownerID, fileID, FileActive, utils.ErrFileNotFound)
	if err != nil {
		return nil, err
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	shares := make([]models.FileShare, 0)
	if err := db.Where("file_id = ?", file.ID).Order("created_at ASC").Find(&shares).Error; err != nil {
		return nil, dbError(err)
	}
	if err := attachGrantees(db, shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Unshare revokes one grant. The grant must belong to fileID.
func (s *ShareService) Unshare(ctx context.Context, ownerID, fileID, shareID uuid.UUID) (*models.FileShare, error) {
	file, err := s.Access.OwnedFile(ctx, ownerID, fileID, FileActive, utils.ErrFileNotFound)
	if err != nil {
		return nil, err
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	var share models.FileShare
	if err := db.Where("id = ? AND file_id = ?", shareID, file.ID).First(&share).Error; err != nil {
		return nil, lookupError(err, utils.ErrShareNotFound)
	}
	if err := db.Delete(&share).Error; err != nil {
		return nil, dbError(err)
	}
	return &share, nil
}

// SharedWithMe lists grants targeting userID whose file is still active,
// each with the file and its owner attached.
func (s *ShareService) SharedWithMe(ctx context.Context, userID uuid.UUID) ([]models.FileShare, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	shares := make([]models.FileShare, 0)
	err := db.
		Joins("JOIN files ON files.id = file_shares.file_id").
		Where("file_shares.user_id = ? AND files.trashed = ? AND files.purge_requested_at IS NULL", userID, false).
		Preload("File").
		Order("file_shares.created_at DESC").
		Find(&shares).Error
	if err != nil {
		return nil, dbError(err)
	}

	ownerIDs := make([]uuid.UUID, 0, len(shares))
	for _, share := range shares {
		if share.File != nil {
			ownerIDs = append(ownerIDs, share.File.UserID)
		}
	}
	owners, err := summaries(db, ownerIDs)
	if err != nil {
		return nil, err
	}
	for i := range shares {
		if shares[i].File == nil {
			continue
		}
		if owner, ok := owners[shares[i].File.UserID]; ok {
			shares[i].File.Owner = &owner
		}
	}
	return shares, nil
}

func attachGrantees(db *gorm.DB, shares []models.FileShare) error {
	ids := make([]uuid.UUID, len(shares))
	for i, share := range shares {
		ids[i] = share.UserID
	}
	users, err := summaries(db, ids)
	if err != nil {
		return err
	}
	for i := range shares {
		if user, ok := users[shares[i].UserID]; ok {
			shares[i].User = &user
		}
	}
	return nil
}

func summaries(db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.UserSummary, error) {
	result := make(map[uuid.UUID]models.UserSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := db.Select("id", "name", "email", "image").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, dbError(err)
	}
	for i := range users {
		result[users[i].ID] = users[i].Summary()
	}
	return result, nil
}
