package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/types"
)

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func spawnBody(label string) map[string]any {
	return map[string]any{
		"projectPath": "proj",
		"label":       label,
		"task":        map[string]any{"description": "test", "type": "code"},
	}
}

func TestSpawnListGetPatchKillLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: a"))
	require.Equal(t, http.StatusCreated, rec.Code)

	var w types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, "TEST: a", w.Label)
	assert.Equal(t, types.WorkerStatusRunning, w.Status)
	assert.True(t, w.AutoAccept)
	assert.Empty(t, w.DependsOn)

	rec = doJSON(t, router, http.MethodGet, "/workers/"+w.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPatch, "/workers/"+w.ID, map[string]any{"label": "TEST: a2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var patched types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "TEST: a2", patched.Label)

	rec = doJSON(t, router, http.MethodDelete, "/workers/"+w.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/workers/"+w.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code) // killed workers remain gettable, just terminal
}

func TestSpawnRejectsDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	body := spawnBody("TEST: dup")
	body["allowDuplicate"] = false

	rec := doJSON(t, router, http.MethodPost, "/workers", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/workers", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Duplicate", envelope["error"]["kind"])
}

func TestSpawnRejectsUnknownProject(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", map[string]any{
		"projectPath": "does-not-exist",
		"label":       "TEST: b",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownWorkerReturns404(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/workers/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendInputRejectsEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: input"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var w types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))

	rec = doJSON(t, router, http.MethodPost, "/workers/"+w.ID+"/input", map[string]any{"input": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsRejectsEmptyPayload(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: settings"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var w types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))

	rec = doJSON(t, router, http.MethodPost, "/workers/"+w.ID+"/settings", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/workers/"+w.ID+"/settings", map[string]any{"autoAccept": false})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListTemplatesRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/workers/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tmpls []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpls))
	require.Len(t, tmpls, 7)
	assert.Equal(t, "research", tmpls[0]["Name"])
}

func TestSpawnFromTemplateRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/workers/spawn-from-template", map[string]any{
		"template":    "impl",
		"projectPath": "proj",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var w types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))
	assert.Equal(t, "impl", w.Label)
	assert.Equal(t, types.TaskTypeCode, w.Task.Type)
}

func TestDependencyRelationsRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: parent"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var parent types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parent))

	childBody := spawnBody("TEST: child")
	childBody["dependsOn"] = []string{parent.ID}
	rec = doJSON(t, router, http.MethodPost, "/workers", childBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var child types.PublicWorker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &child))
	assert.Equal(t, types.WorkerStatusPending, child.Status)

	rec = doJSON(t, router, http.MethodGet, "/workers/"+parent.ID+"/dependencies", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRoute(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
