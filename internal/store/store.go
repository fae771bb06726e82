// Package store holds the two shared collections: template definitions and
// their instances. Each collection is guarded by its own mutex; code that
// needs both always takes the definition lock first and never nests them.
package store

import (
	"sync"

	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/pkg/types"
)

type templateEntry struct {
	rec         *types.Record
	fingerprint [2]uint64
}

// Store is an in-memory definition and instance store. The zero value is not
// usable; call New.
type Store struct {
	tmplMu    sync.Mutex
	templates []templateEntry

	instMu    sync.Mutex
	instances []*types.Record
}

// Stats is a point-in-time count of both collections.
type Stats struct {
	Templates int `json:"templates"`
	Instances int `json:"instances"`
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// AddTemplate appends a definition. A definition equal to an existing one in
// every respect (name and complete ordered field set) is rejected; a
// definition that only shares the name is accepted.
func (s *Store) AddTemplate(rec *types.Record) error {
	fp := rec.Fingerprint()

	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()

	for _, e := range s.templates {
		if e.fingerprint == fp && e.rec.Equal(rec) {
			return tmplerrors.NewAlreadyExists("template " + quote(rec.Schema) + " already exists")
		}
	}
	s.templates = append(s.templates, templateEntry{rec: rec.Clone(), fingerprint: fp})
	return nil
}

// Templates returns a deep copy of every definition in insertion order.
func (s *Store) Templates() []*types.Record {
	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()

	out := make([]*types.Record, len(s.templates))
	for i, e := range s.templates {
		out[i] = e.rec.Clone()
	}
	return out
}

// FindTemplate returns a deep copy of the first definition named name.
func (s *Store) FindTemplate(name string) (*types.Record, error) {
	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()

	for _, e := range s.templates {
		if e.rec.Schema == name {
			return e.rec.Clone(), nil
		}
	}
	return nil, tmplerrors.NewTemplateNotFound(name)
}

// Instantiate copies the first definition named schema into a new instance
// called instance. The definition lock covers only the lookup and the
// instance lock only the append.
func (s *Store) Instantiate(schema, instance string) (*types.Record, error) {
	rec, err := s.FindTemplate(schema)
	if err != nil {
		return nil, err
	}
	rec.Instance = instance

	s.instMu.Lock()
	s.instances = append(s.instances, rec.Clone())
	s.instMu.Unlock()

	return rec, nil
}

// RemoveTemplate deletes the first definition named name and then every
// instance created from a definition of that name. It returns how many
// instances were removed by the cascade.
func (s *Store) RemoveTemplate(name string) (int, error) {
	s.tmplMu.Lock()
	idx := -1
	for i, e := range s.templates {
		if e.rec.Schema == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.tmplMu.Unlock()
		return 0, tmplerrors.NewTemplateNotFound(name)
	}
	s.templates = append(s.templates[:idx], s.templates[idx+1:]...)
	s.tmplMu.Unlock()

	s.instMu.Lock()
	defer s.instMu.Unlock()

	kept := s.instances[:0]
	removed := 0
	for _, inst := range s.instances {
		if inst.Schema == name {
			removed++
			continue
		}
		kept = append(kept, inst)
	}
	for i := len(kept); i < len(s.instances); i++ {
		s.instances[i] = nil
	}
	s.instances = kept
	return removed, nil
}

// Instances returns a deep copy of every instance in store order.
func (s *Store) Instances() []*types.Record {
	s.instMu.Lock()
	defer s.instMu.Unlock()
	return cloneAll(s.instances)
}

// Stats returns the current collection sizes.
func (s *Store) Stats() Stats {
	s.tmplMu.Lock()
	t := len(s.templates)
	s.tmplMu.Unlock()

	s.instMu.Lock()
	i := len(s.instances)
	s.instMu.Unlock()

	return Stats{Templates: t, Instances: i}
}

func cloneAll(recs []*types.Record) []*types.Record {
	out := make([]*types.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

func quote(s string) string {
	return `"` + s + `"`
}
