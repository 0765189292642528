package handlers

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestCreateFolderValidation(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "folders@example.com")
	headers := authHeaders(token)

	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPost, "/api/folders", map[string]any{"name": "  "}, headers), http.StatusBadRequest, "VALIDATION_001")
	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPost, "/api/folders", map[string]any{"name": "A", "parentId": "bad"}, headers), http.StatusBadRequest, "VALIDATION_001")
	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPost, "/api/folders", map[string]any{"name": "A", "parentId": uuid.NewString()}, headers), http.StatusNotFound, "FOLDER_002")

	folder := createTestFolder(t, env, token, "Explicit Root", nil)
	if folder["parentId"] != nil {
		t.Fatalf("expected root folder, got %v", folder["parentId"])
	}
}

func TestFolderParentMustBeOwned(t *testing.T) {
	env := setupTestEnv(t)
	_, ownerToken := createTestUser(t, env, "owner@example.com")
	_, otherToken := createTestUser(t, env, "other@example.com")
	foreignID := createTestFolder(t, env, ownerToken, "Private", nil)["id"].(string)
	other := authHeaders(otherToken)

	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPost, "/api/folders", map[string]any{"name": "Sneaky", "parentId": foreignID}, other), http.StatusNotFound, "FOLDER_002")
	assertEnvelopeError(t, performRequest(t, env.app, http.MethodGet, "/api/folders/"+foreignID, nil, other), http.StatusNotFound, "RESOURCE_001")
	assertEnvelopeError(t, performRequest(t, env.app, http.MethodDelete, "/api/folders/"+foreignID, nil, other), http.StatusNotFound, "RESOURCE_001")

	mine := createTestFolder(t, env, otherToken, "Mine", nil)["id"].(string)
	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPut, "/api/folders/"+mine, map[string]any{"parentId": foreignID}, other), http.StatusNotFound, "FOLDER_002")
}

func TestMoveFolder(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "tree@example.com")
	headers := authHeaders(token)

	a := createTestFolder(t, env, token, "A", nil)["id"].(string)
	b := createTestFolder(t, env, token, "B", a)["id"].(string)
	c := createTestFolder(t, env, token, "C", b)["id"].(string)

	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPut, "/api/folders/"+a, map[string]any{"parentId": a}, headers), http.StatusBadRequest, "FOLDER_003")
	assertEnvelopeError(t, performJSONRequest(t, env.app, http.MethodPut, "/api/folders/"+a, map[string]any{"parentId": c}, headers), http.StatusBadRequest, "FOLDER_005")

	resp := performRequest(t, env.app, http.MethodGet, "/api/folders/"+c+"/path", nil, headers)
	assertStatus(t, resp, http.StatusOK)
	assertNames(t, names(t, dataList(t, resp)), "A", "B", "C")

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/folders/"+c, map[string]any{"parentId": nil, "name": "C2"}, headers)
	assertStatus(t, resp, http.StatusOK)
	data := dataMap(t, resp)
	if data["parentId"] != nil || data["name"] != "C2" {
		t.Fatalf("expected C2 at root, got %v", data)
	}

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/folders/"+b, map[string]any{"name": "B2"}, headers)
	assertStatus(t, resp, http.StatusOK)
	if dataMap(t, resp)["parentId"] != a {
		t.Fatal("rename without parentId must keep the parent")
	}

	root := dataMap(t, performRequest(t, env.app, http.MethodGet, "/api/folders?parentId=null", nil, headers))
	assertNames(t, names(t, root["folders"]), "A", "C2")
}

func TestFolderTrashAndRestore(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "bin@example.com")
	headers := authHeaders(token)
	id := createTestFolder(t, env, token, "Old", nil)["id"].(string)

	assertEnvelopeError(t, performRequest(t, env.app, http.MethodPost, "/api/folders/"+id+"/restore", nil, headers), http.StatusNotFound, "FOLDER_007")

	resp := performRequest(t, env.app, http.MethodPost, "/api/folders/"+id+"/trash", nil, headers)
	assertStatus(t, resp, http.StatusOK)
	if dataMap(t, resp)["trashed"] != true {
		t.Fatal("expected trashed folder")
	}

	root := dataMap(t, performRequest(t, env.app, http.MethodGet, "/api/folders", nil, headers))
	assertNames(t, names(t, root["folders"]))
	trash := dataMap(t, performRequest(t, env.app, http.MethodGet, "/api/files?type=trash", nil, headers))
	assertNames(t, names(t, trash["folders"]), "Old")

	assertStatus(t, performRequest(t, env.app, http.MethodPost, "/api/folders/"+id+"/restore", nil, headers), http.StatusOK)
	root = dataMap(t, performRequest(t, env.app, http.MethodGet, "/api/folders", nil, headers))
	assertNames(t, names(t, root["folders"]), "Old")
}

func TestDeleteFolder(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "rm@example.com")
	headers := authHeaders(token)

	parent := createTestFolder(t, env, token, "Parent", nil)["id"].(string)
	child := createTestFolder(t, env, token, "Child", parent)["id"].(string)

	assertStatus(t, performRequest(t, env.app, http.MethodPost, "/api/folders/"+child+"/trash", nil, headers), http.StatusOK)
	assertEnvelopeError(t, performRequest(t, env.app, http.MethodDelete, "/api/folders/"+parent, nil, headers), http.StatusBadRequest, "FOLDER_004")

	assertNoContent(t, performRequest(t, env.app, http.MethodDelete, "/api/folders/"+child, nil, headers))
	assertNoContent(t, performRequest(t, env.app, http.MethodDelete, "/api/folders/"+parent, nil, headers))
	assertEnvelopeError(t, performRequest(t, env.app, http.MethodGet, "/api/folders/"+parent, nil, headers), http.StatusNotFound, "RESOURCE_001")
}

func TestFolderCounts(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "count@example.com")
	headers := authHeaders(token)

	id := createTestFolder(t, env, token, "Box", nil)["id"].(string)
	createTestFolder(t, env, token, "Inner", id)
	uploadTestFile(t, env, token, "one.txt", id)
	uploadTestFile(t, env, token, "two.txt", id)

	folders := dataMap(t, performRequest(t, env.app, http.MethodGet, "/api/folders", nil, headers))["folders"].([]any)
	box := folders[0].(map[string]any)
	if box["childCount"] != float64(1) || box["fileCount"] != float64(2) {
		t.Fatalf("unexpected counts %v", box)
	}
}
