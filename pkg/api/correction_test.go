package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectionAcceptsValidOutputOnFirstIteration(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: correction"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var w struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))

	rec = doJSON(t, router, http.MethodPost, "/workers/"+w.ID+"/correction", map[string]any{
		"initialOutput": "looks good",
		"taskType":      "code",
		"verifyCommand": "sh",
		"verifyArgs":    []string{"-c", `echo '{"valid":true,"confidence":1.0}'`},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, true, result["Success"])
	assert.Equal(t, "valid_output", result["StopReason"])
	assert.EqualValues(t, 1, result["Iterations"])
}

func TestCorrectionRejectsMissingVerifyCommand(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/workers", spawnBody("TEST: correction2"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var w struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))

	rec = doJSON(t, router, http.MethodPost, "/workers/"+w.ID+"/correction", map[string]any{
		"initialOutput": "looks good",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
