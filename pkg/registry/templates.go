package registry

import (
	"fmt"

	"github.com/drewrad8/strategos/pkg/apierr"
	"github.com/drewrad8/strategos/pkg/types"
)

// Template is a canned worker shape served by GET /workers/templates
// and consumed by POST /workers/spawn-from-template (spec.md §6, named
// but not otherwise defined by the spec).
type Template struct {
	Name             string
	LabelPrefix      string
	TaskType         types.TaskType
	AutoAcceptDefault bool
}

// templates is the fixed table named in spec.md §6's templates
// response: research, impl, test, review, fix, general, colonel.
var templates = map[string]Template{
	"research": {Name: "research", LabelPrefix: "research", TaskType: types.TaskTypeFactual, AutoAcceptDefault: true},
	"impl":     {Name: "impl", LabelPrefix: "impl", TaskType: types.TaskTypeCode, AutoAcceptDefault: false},
	"test":     {Name: "test", LabelPrefix: "test", TaskType: types.TaskTypeCode, AutoAcceptDefault: false},
	"review":   {Name: "review", LabelPrefix: "review", TaskType: types.TaskTypeReasoning, AutoAcceptDefault: false},
	"fix":      {Name: "fix", LabelPrefix: "fix", TaskType: types.TaskTypeCode, AutoAcceptDefault: false},
	"general":  {Name: "general", LabelPrefix: "general", TaskType: types.TaskTypeReasoning, AutoAcceptDefault: true},
	"colonel":  {Name: "colonel", LabelPrefix: "colonel", TaskType: types.TaskTypeReasoning, AutoAcceptDefault: true},
}

// templateOrder is the fixed display order for ListTemplates, matching
// spec.md §6's `{research, impl, test, review, fix, general, colonel}`.
var templateOrder = []string{"research", "impl", "test", "review", "fix", "general", "colonel"}

// ListTemplates returns the template table in the spec's fixed order.
func ListTemplates() []Template {
	out := make([]Template, 0, len(templateOrder))
	for _, name := range templateOrder {
		out = append(out, templates[name])
	}
	return out
}

// SpawnFromTemplate resolves template by name and spawns a worker with
// its defaults, overridden by label/task where the caller supplied
// them.
func (r *Registry) SpawnFromTemplate(templateName, project, label string, task *types.Task) (*types.Worker, *apierr.Error) {
	tmpl, ok := templates[templateName]
	if !ok {
		return nil, apierr.Validation("template", fmt.Sprintf("unknown template %q", templateName))
	}

	if label == "" {
		label = tmpl.LabelPrefix
	}
	if task == nil {
		task = &types.Task{Type: tmpl.TaskType}
	} else if task.Type == "" {
		task.Type = tmpl.TaskType
	}

	return r.Spawn(SpawnSpec{
		Project:    project,
		Label:      label,
		AutoAccept: tmpl.AutoAcceptDefault,
		Task:       task,
	})
}
