package correction

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drewrad8/strategos/pkg/breaker"
	"github.com/drewrad8/strategos/pkg/storage"
	"github.com/drewrad8/strategos/pkg/types"
)

// fakeProducer returns revisions from a fixed queue, or an error once
// the queue is exhausted (simulating producer_unavailable).
type fakeProducer struct {
	revisions []string
	calls     int
}

func (p *fakeProducer) SendCritique(ctx context.Context, formatted string, taskCtx types.Context) (string, error) {
	if p.calls >= len(p.revisions) {
		return "", assertErr("producer exhausted")
	}
	out := p.revisions[p.calls]
	p.calls++
	return out, nil
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func assertErr(msg string) error  { return simpleErr(msg) }

// fakeVerifier returns a scripted sequence of results, one per call,
// repeating the last result once exhausted.
type fakeVerifier struct {
	results []VerificationResult
	calls   int
}

func (v *fakeVerifier) Verify(ctx context.Context, output string, taskType types.TaskType, taskCtx types.Context) (VerificationResult, error) {
	i := v.calls
	if i >= len(v.results) {
		i = len(v.results) - 1
	}
	v.calls++
	return v.results[i], nil
}

// memStore is an in-memory ReflectionStore fake for tests that don't
// need bbolt.
type memStore struct {
	byID map[string]*storage.Reflection
}

func newMemStore() *memStore { return &memStore{byID: map[string]*storage.Reflection{}} }

func (m *memStore) SaveReflection(r *storage.Reflection) error {
	m.byID[r.ID] = r
	return nil
}

func (m *memStore) QueryReflections(taskType, projectID string, minImportance float64, limit int) ([]*storage.Reflection, error) {
	var out []*storage.Reflection
	for _, r := range m.byID {
		if r.TaskType == taskType && r.ProjectID == projectID && r.Importance >= minImportance {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ReinforceReflection(id string, boost float64) error {
	r, ok := m.byID[id]
	if !ok {
		return assertErr("not found")
	}
	r.Importance += boost
	return nil
}

func newTestEngine(t *testing.T, v Verifier, memory storage.ReflectionStore) *Engine {
	t.Helper()
	reg := breaker.NewRegistry(zerolog.Nop())
	return New(v, reg, memory, zerolog.Nop())
}

func TestRunStopsOnValidOutput(t *testing.T) {
	v := &fakeVerifier{results: []VerificationResult{{Valid: true, Confidence: 0.8}}}
	e := newTestEngine(t, v, nil)

	result := e.Run(context.Background(), &fakeProducer{}, "draft", types.TaskTypeCode, nil, "proj")
	assert.True(t, result.Success)
	assert.Equal(t, StopValidOutput, result.StopReason)
	assert.Equal(t, 1, result.Iterations)
}

func TestRunStopsOnConfidenceThreshold(t *testing.T) {
	v := &fakeVerifier{results: []VerificationResult{{Valid: false, Confidence: 0.97, Critiques: []Critique{{Type: "style", Severity: SeverityWarning, Message: "minor"}}}}}
	e := newTestEngine(t, v, nil)

	result := e.Run(context.Background(), &fakeProducer{}, "draft", types.TaskTypeFormat, nil, "proj")
	assert.True(t, result.Success)
	assert.Equal(t, StopConfidenceThreshold, result.StopReason)
}

func TestRunStopsOnMaxIterations(t *testing.T) {
	crit := Critique{Type: "bug", Severity: SeverityError, Message: "off by one on line 12"}
	results := []VerificationResult{
		{Valid: false, Confidence: 0.1, Critiques: []Critique{crit}},
		{Valid: false, Confidence: 0.1, Critiques: []Critique{{Type: "bug", Severity: SeverityError, Message: "off by one on line 99"}}},
	}
	v := &fakeVerifier{results: results}
	e := newTestEngine(t, v, nil)
	producer := &fakeProducer{revisions: []string{"v2", "v3"}}

	result := e.Run(context.Background(), producer, "draft", types.TaskTypeFormat, nil, "proj")
	require.False(t, result.Success)
	assert.Equal(t, StopMaxIterations, result.StopReason)
	assert.Equal(t, 2, result.Iterations)
}

func TestRunStopsOnNoNewCritiques(t *testing.T) {
	crit := Critique{Type: "bug", Severity: SeverityError, Message: "off by one on line 12"}
	v := &fakeVerifier{results: []VerificationResult{{Valid: false, Confidence: 0.1, Critiques: []Critique{crit}}}}
	e := newTestEngine(t, v, nil)
	producer := &fakeProducer{revisions: []string{"v2", "v3", "v4", "v5", "v6"}}

	result := e.Run(context.Background(), producer, "draft", types.TaskTypeCode, nil, "proj")
	require.False(t, result.Success)
	assert.Equal(t, StopNoNewCritiques, result.StopReason)
	assert.Equal(t, 2, result.Iterations)
}

func TestRunStopsOnProducerUnavailable(t *testing.T) {
	crit := Critique{Type: "bug", Severity: SeverityError, Message: "nope"}
	v := &fakeVerifier{results: []VerificationResult{
		{Valid: false, Confidence: 0.1, Critiques: []Critique{crit}},
	}}
	e := newTestEngine(t, v, nil)
	producer := &fakeProducer{} // no revisions queued, first SendCritique fails

	result := e.Run(context.Background(), producer, "draft", types.TaskTypeCode, nil, "proj")
	require.False(t, result.Success)
	assert.Equal(t, StopProducerUnavailable, result.StopReason)
}

func TestRunSavesReflectionOnFailure(t *testing.T) {
	crit := Critique{Type: "bug", Severity: SeverityError, Message: "off by one on line 12"}
	v := &fakeVerifier{results: []VerificationResult{{Valid: false, Confidence: 0.1, Critiques: []Critique{crit}}}}
	mem := newMemStore()
	e := newTestEngine(t, v, mem)
	producer := &fakeProducer{revisions: []string{"v2", "v3", "v4", "v5", "v6"}}

	result := e.Run(context.Background(), producer, "draft", types.TaskTypeCode, nil, "proj")
	require.False(t, result.Success)
	assert.NotEmpty(t, mem.byID)
}

func TestRunReinforcesUsedReflectionsOnSuccess(t *testing.T) {
	mem := newMemStore()
	mem.byID["past"] = &storage.Reflection{ID: "past", TaskType: "code", ProjectID: "proj", Importance: 0.5, Lessons: "avoid off-by-one"}

	v := &fakeVerifier{results: []VerificationResult{{Valid: true, Confidence: 0.9}}}
	e := newTestEngine(t, v, mem)

	result := e.Run(context.Background(), &fakeProducer{}, "draft", types.TaskTypeCode, types.Context{}, "proj")
	assert.True(t, result.Success)
	assert.Greater(t, mem.byID["past"].Importance, 0.5)
}

func TestNormalizeCritiqueMessageCollapsesDigitsAndQuotes(t *testing.T) {
	a := normalizeCritiqueMessage(`Expected "foo" at line 12`)
	b := normalizeCritiqueMessage(`Expected "bar" at line 99`)
	assert.Equal(t, a, b)
}
