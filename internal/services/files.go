package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"gorm.io/gorm"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

type FileService struct {
	DB             *gorm.DB
	Access         *AccessService
	Folders        *FolderService
	Storage        storage.BlobStore
	StorageTimeout time.Duration
}

func NewFileService(db *gorm.DB, access *AccessService, folders *FolderService, store storage.BlobStore, storageTimeout time.Duration) *FileService {
	if storageTimeout <= 0 {
		storageTimeout = 30 * time.Second
	}
	return &FileService{
		DB:             db,
		Access:         access,
		Folders:        folders,
		Storage:        store,
		StorageTimeout: storageTimeout,
	}
}

// UploadInput is the validated metadata plus the content stream. Size is the
// declared size stored on the record; ContentLength is what the reader holds.
type UploadInput struct {
	Name          string
	Type          string
	Size          int64
	FolderID      *uuid.UUID
	Content       io.Reader
	ContentLength int64
}

type UpdateFileInput struct {
	Name     *string
	Move     bool
	FolderID *uuid.UUID
}

type TrashListing struct {
	Files   []models.File   `json:"files"`
	Folders []models.Folder `json:"folders"`
}

type FolderListing struct {
	Folders []models.Folder `json:"folders"`
	Files   []models.File   `json:"files"`
}

func (s *FileService) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.StorageTimeout)
}

func objectPath(userID uuid.UUID, folderID *uuid.UUID, name string) string {
	prefix := userID.String()
	if folderID != nil {
		prefix += "/" + folderID.String()
	}
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("%s/%s-%s", prefix, shortuuid.New(), safe)
}

func storageError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.ErrTimeout.Wrap(err)
	}
	return utils.ErrStorage.Wrap(err)
}

func (s *FileService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.File, error) {
	var folder *models.Folder
	if in.FolderID != nil {
		found, err := s.Access.OwnedFolder(ctx, userID, *in.FolderID, utils.ErrFolderNotFound)
		if err != nil {
			return nil, err
		}
		folder = found
	}

	key := objectPath(userID, in.FolderID, in.Name)
	putCtx, cancel := s.storageCtx(ctx)
	blob, err := s.Storage.Put(putCtx, key, in.Content, in.ContentLength, in.Type)
	cancel()
	if err != nil {
		return nil, storageError(err)
	}

	file := models.File{
		Name:        in.Name,
		Type:        in.Type,
		Size:        in.Size,
		URL:         blob.URL,
		StoragePath: blob.Path,
		BlobID:      blob.BlobID,
		UserID:      userID,
		FolderID:    in.FolderID,
	}

	db, cancelDB := s.Access.db(ctx)
	err = db.Create(&file).Error
	cancelDB()
	if err != nil {
		s.discardBlob(ctx, userID, blob.Path)
		return nil, dbError(err)
	}

	if folder != nil {
		ref := folder.Ref()
		file.Folder = &ref
	}
	return &file, nil
}

// discardBlob removes an orphaned upload after the record insert failed.
func (s *FileService) discardBlob(ctx context.Context, userID uuid.UUID, path string) {
	delCtx, cancel := s.storageCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.Storage.Delete(delCtx, path); err != nil {
		logger.ErrorWithUser(userID.String(), "upload_compensation_failed", err, map[string]interface{}{
			"storage_path": path,
		})
	}
}

func (s *FileService) Get(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	file, err := s.Access.OwnedFile(ctx, userID, fileID, FileAny, utils.ErrNotFound)
	if err != nil {
		return nil, err
	}
	if err := s.attachFolder(ctx, userID, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *FileService) attachFolder(ctx context.Context, userID uuid.UUID, file *models.File) error {
	if file.FolderID == nil {
		return nil
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	var folder models.Folder
	err := db.Select("id", "name").Where("id = ? AND user_id = ?", *file.FolderID, userID).First(&folder).Error
	switch {
	case err == nil:
		ref := folder.Ref()
		file.Folder = &ref
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return dbError(err)
	}
}

func (s *FileService) Update(ctx context.Context, userID, fileID uuid.UUID, in UpdateFileInput) (*models.File, error) {
	if _, err := s.Access.OwnedFile(ctx, userID, fileID, FileAny, utils.ErrNotFound); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Move {
		if in.FolderID == nil {
			updates["folder_id"] = nil
		} else {
			folder, err := s.Access.OwnedFolder(ctx, userID, *in.FolderID, utils.ErrFolderNotFound)
			if err != nil {
				return nil, err
			}
			updates["folder_id"] = folder.ID
		}
	}

	if len(updates) > 0 {
		if err := s.update(ctx, userID, fileID, updates); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID, fileID)
}

func (s *FileService) update(ctx context.Context, userID, fileID uuid.UUID, updates map[string]interface{}) error {
	db, cancel := s.Access.db(ctx)
	defer cancel()
	err := db.Model(&models.File{}).
		Where("id = ? AND user_id = ?", fileID, userID).
		Updates(updates).Error
	return dbError(err)
}

func (s *FileService) Star(ctx context.Context, userID, fileID uuid.UUID, starred bool) (*models.File, error) {
	if _, err := s.Access.OwnedFile(ctx, userID, fileID, FileActive, utils.ErrFileNotFound); err != nil {
		return nil, err
	}
	if err := s.update(ctx, userID, fileID, map[string]interface{}{"starred": starred}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, fileID)
}

func (s *FileService) Trash(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	if _, err := s.Access.OwnedFile(ctx, userID, fileID, FileActive, utils.ErrFileNotFound); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.update(ctx, userID, fileID, map[string]interface{}{
		"trashed":    true,
		"trashed_at": now,
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, fileID)
}

func (s *FileService) Restore(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	if _, err := s.Access.OwnedFile(ctx, userID, fileID, FileTrashed, utils.ErrFileNotInTrash); err != nil {
		return nil, err
	}
	if err := s.update(ctx, userID, fileID, map[string]interface{}{
		"trashed":    false,
		"trashed_at": nil,
	}); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, fileID)
}

// Touch records an access by the owner or a grantee.
func (s *FileService) Touch(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	file, err := s.Access.AccessibleFile(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	db, cancel := s.Access.db(ctx)
	defer cancel()
	if err := db.Model(&models.File{}).Where("id = ?", file.ID).Update("last_accessed_at", now).Error; err != nil {
		return nil, dbError(err)
	}
	file.LastAccessedAt = &now
	return file, nil
}

// Delete permanently removes a file. The record is marked first, then the
// blob is deleted, then grants and record go in one transaction. A failed
// blob delete unmarks the record unless the reconciler has already claimed
// it, in which case the deletion completes there. A failure after the blob
// delete leaves the mark for the reconciler.
func (s *FileService) Delete(ctx context.Context, userID, fileID uuid.UUID) (*models.File, error) {
	file, err := s.Access.OwnedFile(ctx, userID, fileID, FileAny, utils.ErrNotFound)
	if err != nil {
		return nil, err
	}

	markedAt, err := s.markForPurge(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	delCtx, cancel := s.storageCtx(ctx)
	err = s.Storage.Delete(delCtx, file.StoragePath)
	cancel()
	if err != nil {
		if s.unmark(ctx, userID, fileID, markedAt) {
			return nil, storageError(err)
		}
		logger.WarnWithUser(userID.String(), "file_purge_claimed", map[string]interface{}{
			"file_id":       file.ID.String(),
			"storage_error": err.Error(),
		})
		return file, nil
	}

	db, cancelDB := s.Access.db(ctx)
	defer cancelDB()
	if err := purgeRecord(db, file.ID); err != nil {
		logger.ErrorWithUser(userID.String(), "file_purge_incomplete", err, map[string]interface{}{
			"file_id": file.ID.String(),
		})
		return nil, dbError(err)
	}
	return file, nil
}

// purgeMarkTime is truncated to the precision Postgres keeps so the mark can
// be compared after a round trip.
func purgeMarkTime() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (s *FileService) markForPurge(ctx context.Context, userID, fileID uuid.UUID) (time.Time, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()
	markedAt := purgeMarkTime()
	result := db.Model(&models.File{}).
		Where("id = ? AND user_id = ? AND purge_requested_at IS NULL", fileID, userID).
		Update("purge_requested_at", markedAt)
	if result.Error != nil {
		return time.Time{}, dbError(result.Error)
	}
	if result.RowsAffected == 0 {
		return time.Time{}, utils.ErrNotFound
	}
	return markedAt, nil
}

// unmark clears this request's purge mark. It reports false when the mark is
// no longer ours: the reconciler renewed it or already removed the row.
func (s *FileService) unmark(ctx context.Context, userID, fileID uuid.UUID, markedAt time.Time) bool {
	db, cancel := s.Access.db(context.WithoutCancel(ctx))
	defer cancel()
	result := db.Model(&models.File{}).
		Where("id = ? AND user_id = ? AND purge_requested_at <= ?", fileID, userID, markedAt).
		Update("purge_requested_at", nil)
	if result.Error != nil {
		logger.ErrorWithUser(userID.String(), "file_purge_unmark_failed", result.Error, map[string]interface{}{
			"file_id": fileID.String(),
		})
		return false
	}
	return result.RowsAffected > 0
}

// purgeRecord deletes a file's grants and its row together.
func purgeRecord(db *gorm.DB, fileID uuid.UUID) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&models.FileShare{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", fileID).Delete(&models.File{}).Error
	})
}

func (s *FileService) activeFiles(db *gorm.DB, userID uuid.UUID) *gorm.DB {
	return db.Where("user_id = ? AND trashed = ? AND purge_requested_at IS NULL", userID, false)
}

func (s *FileService) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]models.File, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	db, cancel := s.Access.db(ctx)
	defer cancel()

	files := make([]models.File, 0)
	err := s.activeFiles(db, userID).
		Where("last_accessed_at IS NOT NULL").
		Order("last_accessed_at DESC").
		Limit(limit).
		Find(&files).Error
	return files, dbError(err)
}

func (s *FileService) Starred(ctx context.Context, userID uuid.UUID) ([]models.File, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	files := make([]models.File, 0)
	err := s.activeFiles(db, userID).
		Where("starred = ?", true).
		Order("updated_at DESC").
		Find(&files).Error
	return files, dbError(err)
}

func (s *FileService) Trashed(ctx context.Context, userID uuid.UUID) (*TrashListing, error) {
	db, cancel := s.Access.db(ctx)
	files := make([]models.File, 0)
	err := db.Where("user_id = ? AND trashed = ? AND purge_requested_at IS NULL", userID, true).
		Order("trashed_at DESC").
		Find(&files).Error
	cancel()
	if err != nil {
		return nil, dbError(err)
	}

	folders, err := s.Folders.ListTrashed(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &TrashListing{Files: files, Folders: folders}, nil
}

// InFolder lists the active files directly inside folderID, or at the root
// when folderID is nil.
func (s *FileService) InFolder(ctx context.Context, userID uuid.UUID, folderID *uuid.UUID) ([]models.File, error) {
	db, cancel := s.Access.db(ctx)
	defer cancel()

	query := s.activeFiles(db, userID)
	if folderID == nil {
		query = query.Where("folder_id IS NULL")
	} else {
		query = query.Where("folder_id = ?", *folderID)
	}

	files := make([]models.File, 0)
	err := query.Order("name ASC").Find(&files).Error
	return files, dbError(err)
}

// Browse returns the folders and, optionally, the files under folderID.
func (s *FileService) Browse(ctx context.Context, userID uuid.UUID, folderID *uuid.UUID, includeFiles bool) (*FolderListing, error) {
	folders, err := s.Folders.List(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	files := make([]models.File, 0)
	if includeFiles {
		files, err = s.InFolder(ctx, userID, folderID)
		if err != nil {
			return nil, err
		}
	}
	return &FolderListing{Folders: folders, Files: files}, nil
}
