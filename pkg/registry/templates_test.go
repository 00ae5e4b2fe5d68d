package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/types"
)

func TestListTemplatesReturnsFixedOrder(t *testing.T) {
	got := ListTemplates()
	require.Len(t, got, 7)
	names := make([]string, len(got))
	for i, tmpl := range got {
		names[i] = tmpl.Name
	}
	assert.Equal(t, []string{"research", "impl", "test", "review", "fix", "general", "colonel"}, names)
}

func TestSpawnFromTemplateAppliesDefaults(t *testing.T) {
	r := newTestRegistry(t)
	w, aerr := r.SpawnFromTemplate("impl", "proj", "", nil)
	require.Nil(t, aerr)
	assert.Equal(t, "impl", w.Label)
	assert.Equal(t, types.TaskTypeCode, w.Task.Type)
	assert.False(t, w.AutoAccept)
}

func TestSpawnFromTemplateRejectsUnknownTemplate(t *testing.T) {
	r := newTestRegistry(t)
	_, aerr := r.SpawnFromTemplate("nonexistent", "proj", "", nil)
	require.NotNil(t, aerr)
	assert.Equal(t, apierr.KindValidation, aerr.Kind)
}

func TestSpawnFromTemplateHonorsCallerLabelAndTask(t *testing.T) {
	r := newTestRegistry(t)
	task := &types.Task{Description: "investigate flaky test"}
	w, aerr := r.SpawnFromTemplate("research", "proj", "my-research", task)
	require.Nil(t, aerr)
	assert.Equal(t, "my-research", w.Label)
	assert.Equal(t, types.TaskTypeFactual, w.Task.Type)
	assert.Equal(t, "investigate flaky test", w.Task.Description)
}
