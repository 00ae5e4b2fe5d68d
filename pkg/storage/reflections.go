package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Reflection is a durable lesson harvested from a failed correction
// loop session (spec.md §4.6's reflection extension), retrievable by a
// later session on the same taskType/projectId.
type Reflection struct {
	ID          string    `json:"id"`
	TaskType    string    `json:"taskType"`
	ProjectID   string    `json:"projectId"`
	Importance  float64   `json:"importance"`
	Categories  []string  `json:"categories"`
	Patterns    []string  `json:"patterns"`
	Lessons     string    `json:"lessons"`
	CreatedAt   time.Time `json:"createdAt"`
	Reinforced  int       `json:"reinforced"`
}

// ReflectionStore persists and retrieves Reflections for the
// correction loop's optional memory extension.
type ReflectionStore interface {
	SaveReflection(r *Reflection) error
	QueryReflections(taskType, projectID string, minImportance float64, limit int) ([]*Reflection, error)
	ReinforceReflection(id string, boost float64) error
}

// SaveReflection persists r, keyed by its id.
func (s *BoltStore) SaveReflection(r *Reflection) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReflections)
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put([]byte(r.ID), data)
	})
}

// QueryReflections returns up to limit reflections matching taskType
// and projectID with importance at or above minImportance, sorted by
// importance descending then recency descending (spec.md §4.6: "sorted
// by importance then recency").
func (s *BoltStore) QueryReflections(taskType, projectID string, minImportance float64, limit int) ([]*Reflection, error) {
	var all []*Reflection
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReflections)
		return b.ForEach(func(k, v []byte) error {
			var r Reflection
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			if r.TaskType != taskType || r.ProjectID != projectID || r.Importance < minImportance {
				return nil
			}
			all = append(all, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Importance != all[j].Importance {
			return all[i].Importance > all[j].Importance
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ReinforceReflection boosts a previously-stored reflection's
// importance after a session that used it succeeds (spec.md §4.6:
// "reinforce each used reflection by a fixed boost").
func (s *BoltStore) ReinforceReflection(id string, boost float64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReflections)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("reflection not found: %s", id)
		}
		var r Reflection
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		r.Importance += boost
		r.Reinforced++
		updated, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}
