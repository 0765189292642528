package database

import (
	"testing"

	"github.com/filevault/backend/internal/config"
	"github.com/filevault/backend/internal/models"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(config.DBConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}

	for _, table := range []string{"users", "sessions", "folders", "files", "file_shares", "audit_logs"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("expected table %s to exist after migration", table)
		}
	}

	t.Run("enforces one share per file and user", func(t *testing.T) {
		owner := models.User{Email: "owner@example.com", Name: "Owner"}
		grantee := models.User{Email: "grantee@example.com", Name: "Grantee"}
		if err := db.Create(&owner).Error; err != nil {
			t.Fatalf("failed creating owner: %v", err)
		}
		if err := db.Create(&grantee).Error; err != nil {
			t.Fatalf("failed creating grantee: %v", err)
		}
		file := models.File{Name: "a.txt", Type: "text/plain", Size: 1, URL: "memory://a", StoragePath: "a", BlobID: "a", UserID: owner.ID}
		if err := db.Create(&file).Error; err != nil {
			t.Fatalf("failed creating file: %v", err)
		}

		fileID, userID := file.ID, grantee.ID
		first := models.FileShare{FileID: fileID, UserID: userID, Permission: models.SharePermissionView}
		if err := db.Create(&first).Error; err != nil {
			t.Fatalf("failed creating first share: %v", err)
		}

		second := models.FileShare{FileID: fileID, UserID: userID, Permission: models.SharePermissionEdit}
		if err := db.Create(&second).Error; err == nil {
			t.Fatal("expected duplicate (file, user) share to be rejected")
		}
	})

	t.Run("migrate is idempotent", func(t *testing.T) {
		if err := Migrate(db); err != nil {
			t.Fatalf("second migration failed: %v", err)
		}
	})
}
