package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testServices struct {
	db      *gorm.DB
	store   *storage.MemoryStore
	access  *AccessService
	folders *FolderService
	files   *FileService
	shares  *ShareService
	auth    *AuthService
}

func setupServices(t *testing.T) *testServices {
	t.Helper()
	logger.SetOutput(io.Discard)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	store := storage.NewMemoryStore()
	access := NewAccessService(db, 5*time.Second)
	folders := NewFolderService(db, access, 8)
	return &testServices{
		db:      db,
		store:   store,
		access:  access,
		folders: folders,
		files:   NewFileService(db, access, folders, store, 5*time.Second),
		shares:  NewShareService(db, access),
		auth:    NewAuthService(db, access),
	}
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{Email: email, Name: "Test User", PasswordHash: &hash}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createFolder(t *testing.T, s *testServices, owner uuid.UUID, name string, parent *uuid.UUID) *models.Folder {
	t.Helper()
	folder, err := s.folders.Create(context.Background(), owner, CreateFolderInput{Name: name, ParentID: parent})
	require.NoError(t, err)
	return folder
}

func uploadFile(t *testing.T, s *testServices, owner uuid.UUID, name string, folder *uuid.UUID) *models.File {
	t.Helper()
	content := "content of " + name
	file, err := s.files.Upload(context.Background(), owner, UploadInput{
		Name:          name,
		Type:          "text/plain",
		Size:          int64(len(content)),
		FolderID:      folder,
		Content:       strings.NewReader(content),
		ContentLength: int64(len(content)),
	})
	require.NoError(t, err)
	return file
}

func requireAPIError(t *testing.T, err error, want *utils.APIError) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, want, "got %v", err)
}
