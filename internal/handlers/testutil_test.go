package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/filevault/backend/internal/database"
	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *storage.MemoryStore
	audit *services.AuditService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupTestEnvWithLimiter(t, middleware.NewRateLimiter(1000, 1000))
}

func setupTestEnvWithLimiter(t *testing.T, limiter *middleware.RateLimiter) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.SetOutput(io.Discard)
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed migrating: %v", err)
	}

	store := storage.NewMemoryStore()
	access := services.NewAccessService(db, 5*time.Second)
	folders := services.NewFolderService(db, access, 16)
	auditService := services.NewAuditService(db, 100)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = auditService.Close(ctx)
		_ = sqlDB.Close()
	})

	app := fiber.New(fiber.Config{
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: utils.ErrorHandler,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(""))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	RegisterRoutes(app, Services{
		Auth:    services.NewAuthService(db, access),
		Folders: folders,
		Files:   services.NewFileService(db, access, folders, store, 5*time.Second),
		Shares:  services.NewShareService(db, access),
		Audit:   auditService,
	}, limiter)

	return &testEnv{app: app, db: db, store: store, audit: auditService}
}

func createTestUser(t *testing.T, env *testEnv, email string) (*models.User, string) {
	t.Helper()

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", map[string]any{
		"name":     "Test User",
		"email":    email,
		"password": "password123",
	}, nil)
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)

	data := body["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("expected token in register response, got %+v", body)
	}

	var user models.User
	if err := env.db.Where("email = ?", email).First(&user).Error; err != nil {
		t.Fatalf("failed loading registered user: %v", err)
	}
	return &user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

// performUpload sends a multipart upload. An empty metadata string omits
// the part, and nil content omits the file part.
func performUpload(t *testing.T, app *fiber.App, token, metadata string, content []byte) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if content != nil {
		part, err := writer.CreateFormFile("file", "upload.bin")
		if err != nil {
			t.Fatalf("failed creating file part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("failed writing file part: %v", err)
		}
	}
	if metadata != "" {
		if err := writer.WriteField("metadata", metadata); err != nil {
			t.Fatalf("failed writing metadata: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	headers := authHeaders(token)
	headers["Content-Type"] = writer.FormDataContentType()
	return performRequest(t, app, http.MethodPost, "/api/files", &buf, headers)
}

func uploadTestFile(t *testing.T, env *testEnv, token, name string, folderID string) map[string]any {
	t.Helper()

	content := []byte("hello " + name)
	meta := map[string]any{"name": name, "type": "text/plain", "size": len(content)}
	if folderID != "" {
		meta["folderId"] = folderID
	}
	encoded, _ := json.Marshal(meta)

	resp := performUpload(t, env.app, token, string(encoded), content)
	assertStatus(t, resp, http.StatusCreated)
	return decodeJSONMap(t, resp)["data"].(map[string]any)
}

func createTestFolder(t *testing.T, env *testEnv, token, name string, parentID any) map[string]any {
	t.Helper()

	payload := map[string]any{"name": name}
	if parentID != nil {
		payload["parentId"] = parentID
	}
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/folders", payload, authHeaders(token))
	assertStatus(t, resp, http.StatusCreated)
	return decodeJSONMap(t, resp)["data"].(map[string]any)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d body=%s", expected, resp.StatusCode, raw)
	}
}

func assertEnvelopeError(t *testing.T, resp *http.Response, status int, code string) map[string]any {
	t.Helper()
	assertStatus(t, resp, status)
	body := decodeJSONMap(t, resp)
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["code"].(string); got != code {
		t.Fatalf("expected code %q, got %q (%+v)", code, got, body)
	}
	return body
}

func assertNoContent(t *testing.T, resp *http.Response) {
	t.Helper()
	assertStatus(t, resp, http.StatusNoContent)
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) != 0 {
		t.Fatalf("expected empty body, got %q", raw)
	}
}

func dataMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %+v", body)
	}
	return data
}

func dataList(t *testing.T, resp *http.Response) []any {
	t.Helper()
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected list data, got %+v", body)
	}
	return data
}
