package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointsListEmptyByDefault(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/checkpoints", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.Bytes()
	if len(body) > 0 && string(body) != "null" {
		var cps []map[string]any
		require.NoError(t, json.Unmarshal(body, &cps))
		assert.Empty(t, cps)
	}
}
