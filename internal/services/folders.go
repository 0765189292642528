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

const defaultMaxFolderDepth = 64

type FolderService struct {
	DB       *gorm.DB
	Access   *AccessService
	MaxDepth int
}

func NewFolderService(db *gorm.DB, access *AccessService, maxDepth int) *FolderService {
	if maxDepth <= 0 {
		maxDepth = defaultMaxFolderDepth
	}
	return &FolderService{DB: db, Access: access, MaxDepth: maxDepth}
}

type CreateFolderInput struct {
	Name     string
	ParentID *uuid.UUID
}

// UpdateFolderInput carries a rename and/or a move. Move is false when the
// parent is left unchanged; a nil ParentID with Move set means root.
type UpdateFolderInput struct {
	Name     *string
	Move     bool
	ParentID *uuid.UUID
}

func (s *FolderService) Create(ctx context.Context, userID uuid.UUID, in CreateFolderInput) (*models.Folder, error) {
	var parent *models.Folder
	if in.ParentID != nil {
		found, err := s.Access.OwnedFolder(ctx, userID, *in.ParentID, utils.ErrParentNotFound)
		if err != nil {
			return nil, err
		}
		parent = found
	}

	folder := models.Folder{
		Name:     in.Name,
		UserID:   userID,
		ParentID: in.ParentID,
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()
	if err := db.Create(&folder).Error; err != nil {
		return nil, dbError(err)
	}

	if parent != nil {
		ref := parent.Ref()
		folder.Parent = &ref
	}
	return &folder, nil
}

func (s *FolderService) Get(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	folder, err := s.Access.OwnedFolder(ctx, userID, folderID, utils.ErrNotFound)
	if err != nil {
		return nil, err
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	if folder.ParentID != nil {
		var parent models.Folder
		err := db.Select("id", "name").Where("id = ? AND user_id = ?", *folder.ParentID, userID).First(&parent).Error
		switch {
		case err == nil:
			ref := parent.Ref()
			folder.Parent = &ref
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, dbError(err)
		}
	}

	folders := []models.Folder{*folder}
	if err := attachCounts(db, folders); err != nil {
		return nil, err
	}
	return &folders[0], nil
}

func (s *FolderService) Update(ctx context.Context, userID, folderID uuid.UUID, in UpdateFolderInput) (*models.Folder, error) {
	if _, err := s.Access.OwnedFolder(ctx, userID, folderID, utils.ErrNotFound); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}

	if in.Move {
		if in.ParentID == nil {
			updates["parent_id"] = nil
		} else {
			if *in.ParentID == folderID {
				return nil, utils.ErrSelfParent
			}
			parent, err := s.Access.OwnedFolder(ctx, userID, *in.ParentID, utils.ErrParentNotFound)
			if err != nil {
				return nil, err
			}
			updates["parent_id"] = parent.ID
		}
	}

	if len(updates) > 0 {
		db, cancel := s.Access.db(ctx)
		err := db.Transaction(func(tx *gorm.DB) error {
			if in.Move && in.ParentID != nil {
				if err := s.ensureNotAncestor(tx, userID, folderID, *in.ParentID); err != nil {
					return err
				}
			}
			return tx.Model(&models.Folder{}).
				Where("id = ? AND user_id = ?", folderID, userID).
				Updates(updates).Error
		})
		cancel()
		if err != nil {
			return nil, dbError(err)
		}
	}

	return s.Get(ctx, userID, folderID)
}

// ensureNotAncestor walks upward from startID and fails if folderID is
// reached, which would make the move create a cycle.
func (s *FolderService) ensureNotAncestor(tx *gorm.DB, userID, folderID, startID uuid.UUID) error {
	current := startID
	for hops := 0; ; hops++ {
		if current == folderID {
			return utils.ErrFolderCycle
		}
		if hops >= s.MaxDepth {
			return utils.ErrFolderTooDeep
		}

		var node models.Folder
		err := tx.Select("id", "parent_id").Where("id = ? AND user_id = ?", current, userID).First(&node).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if node.ParentID == nil {
			return nil
		}
		current = *node.ParentID
	}
}

// Delete removes an empty folder. Trashed children still count.
func (s *FolderService) Delete(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	var deleted models.Folder

	db, cancel := s.Access.db(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", folderID, userID).First(&deleted).Error; err != nil {
			return lookupError(err, utils.ErrNotFound)
		}

		var childFolders, childFiles int64
		if err := tx.Model(&models.Folder{}).Where("parent_id = ?", folderID).Count(&childFolders).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.File{}).Where("folder_id = ?", folderID).Count(&childFiles).Error; err != nil {
			return err
		}
		if childFolders > 0 || childFiles > 0 {
			return utils.ErrFolderNotEmpty
		}

		return tx.Where("id = ? AND user_id = ?", folderID, userID).Delete(&models.Folder{}).Error
	})
	if err != nil {
		return nil, dbError(err)
	}
	return &deleted, nil
}

// List returns the active direct children of parentID, or root folders when
// parentID is nil, ordered by name.
func (s *FolderService) List(ctx context.Context, userID uuid.UUID, parentID *uuid.UUID) ([]models.Folder, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	query := db.Where("user_id = ? AND trashed = ?", userID, false)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}

	folders := make([]models.Folder, 0)
	if err := query.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, dbError(err)
	}
	if err := attachCounts(db, folders); err != nil {
		return nil, err
	}
	return folders, nil
}

func (s *FolderService) ListTrashed(ctx context.Context, userID uuid.UUID) ([]models.Folder, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	folders := make([]models.Folder, 0)
	if err := db.Where("user_id = ? AND trashed = ?", userID, true).
		Order("trashed_at DESC").
		Find(&folders).Error; err != nil {
		return nil, dbError(err)
	}
	if err := attachCounts(db, folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// Path returns the breadcrumb from the root down to folderID.
func (s *FolderService) Path(ctx context.Context, userID, folderID uuid.UUID) ([]models.FolderRef, error) {
	folder, err := s.Access.OwnedFolder(ctx, userID, folderID, utils.ErrNotFound)
	if err != nil {
		return nil, err
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	path := []models.FolderRef{folder.Ref()}
	next := folder.ParentID
	for next != nil {
		if len(path) > s.MaxDepth {
			return nil, utils.ErrFolderTooDeep
		}

		var parent models.Folder
		err := db.Select("id", "name", "parent_id").Where("id = ? AND user_id = ?", *next, userID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return nil, dbError(err)
		}

		path = append(path, parent.Ref())
		next = parent.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

func (s *FolderService) Trash(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	now := time.Now().UTC()
	return s.setTrashed(ctx, userID, folderID, false, map[string]interface{}{
		"trashed":    true,
		"trashed_at": now,
	}, utils.ErrNotFound)
}

func (s *FolderService) Restore(ctx context.Context, userID, folderID uuid.UUID) (*models.Folder, error) {
	return s.setTrashed(ctx, userID, folderID, true, map[string]interface{}{
		"trashed":    false,
		"trashed_at": nil,
	}, utils.ErrFolderNotInTrash)
}

func (s *FolderService) setTrashed(ctx context.Context, userID, folderID uuid.UUID, current bool, updates map[string]interface{}, notFound *utils.APIError) (*models.Folder, error) {
	db, cancel := s.Access.db(ctx)
	result := db.Model(&models.Folder{}).
		Where("id = ? AND user_id = ? AND trashed = ?", folderID, userID, current).
		Updates(updates)
	cancel()
	if result.Error != nil {
		return nil, dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, notFound
	}
	return s.Get(ctx, userID, folderID)
}

type idCount struct {
	ID    uuid.UUID
	Count int64
}

// attachCounts fills ChildCount and FileCount with two grouped queries.
func attachCounts(db *gorm.DB, folders []models.Folder) error {
	if len(folders) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}

	var childRows, fileRows []idCount
	if err := db.Model(&models.Folder{}).
		Select("parent_id AS id, COUNT(*) AS count").
		Where("parent_id IN ?", ids).
		Group("parent_id").
		Scan(&childRows).Error; err != nil {
		return dbError(err)
	}
	if err := db.Model(&models.File{}).
		Select("folder_id AS id, COUNT(*) AS count").
		Where("folder_id IN ?", ids).
		Group("folder_id").
		Scan(&fileRows).Error; err != nil {
		return dbError(err)
	}

	children := make(map[uuid.UUID]int64, len(childRows))
	for _, r := range childRows {
		children[r.ID] = r.Count
	}
	files := make(map[uuid.UUID]int64, len(fileRows))
	for _, r := range fileRows {
		files[r.ID] = r.Count
	}

	for i := range folders {
		folders[i].ChildCount = children[folders[i].ID]
		folders[i].FileCount = files[folders[i].ID]
	}
	return nil
}
