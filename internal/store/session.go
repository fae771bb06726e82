package store

import (
	"github.com/google/uuid"
	tmplerrors "github.com/tmpldb/tmpldb/internal/errors"
	"github.com/tmpldb/tmpldb/pkg/types"
)

// Session is exclusive access to the instance collection. While a session is
// open every other session and every instance operation on the store blocks.
// A session belongs to one goroutine and must be released exactly once;
// Release is safe to call again after that.
type Session struct {
	id       string
	store    *Store
	released bool
}

// Exclusive opens a session, blocking until the instance lock is available.
func (s *Store) Exclusive() *Session {
	s.instMu.Lock()
	return &Session{id: uuid.New().String(), store: s}
}

// ID identifies the session in logs.
func (sess *Session) ID() string {
	return sess.id
}

// Release gives up the instance lock.
func (sess *Session) Release() {
	if sess.released {
		return
	}
	sess.released = true
	sess.store.instMu.Unlock()
}

// Take removes the first instance named name and hands it to the caller.
// The store holds no copy until the caller puts one back.
func (sess *Session) Take(name string) (*types.Record, error) {
	insts := sess.store.instances
	for i, inst := range insts {
		if inst.Instance == name {
			sess.store.instances = append(insts[:i], insts[i+1:]...)
			insts[len(insts)-1] = nil
			return inst, nil
		}
	}
	return nil, tmplerrors.NewInstanceNotFound(name)
}

// Put appends an instance to the collection.
func (sess *Session) Put(rec *types.Record) {
	sess.store.instances = append(sess.store.instances, rec)
}

// Remove deletes the first instance named name.
func (sess *Session) Remove(name string) error {
	_, err := sess.Take(name)
	return err
}

// Len returns the number of stored instances.
func (sess *Session) Len() int {
	return len(sess.store.instances)
}

// Instances returns a deep copy of every instance in store order.
func (sess *Session) Instances() []*types.Record {
	return cloneAll(sess.store.instances)
}
