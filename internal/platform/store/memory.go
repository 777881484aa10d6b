package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DBEST-EZRA/HMIS/internal/platform/apperr"
)

type memCollection struct {
	order []string
	docs  map[string]Record
}

func (c *memCollection) clone() *memCollection {
	out := &memCollection{
		order: append([]string(nil), c.order...),
		docs:  make(map[string]Record, len(c.docs)),
	}
	for id, r := range c.docs {
		out.docs[id] = r
	}
	return out
}

// MemoryStore keeps every collection in process memory. Transactions stage
// their writes on copies of the touched collections and swap them in only
// when every op succeeded.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*memCollection
	clock func() time.Time
	newID func() string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]*memCollection),
		clock: time.Now,
		newID: NewID,
	}
}

// SetClock overrides the createdAt source; used by tests and seeders.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	s.clock = clock
	s.mu.Unlock()
}

// Seed inserts a record verbatim, keeping its id and createdAt. It is meant
// for fixtures and imports, not for request handling.
func (s *MemoryStore) Seed(collection string, r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(s.data, collection)
	if r.ID == "" {
		r.ID = s.newID()
	}
	if _, exists := c.docs[r.ID]; !exists {
		c.order = append(c.order, r.ID)
	}
	c.docs[r.ID] = r.Clone()
}

func (s *MemoryStore) coll(data map[string]*memCollection, name string) *memCollection {
	c, ok := data[name]
	if !ok {
		c = &memCollection{docs: make(map[string]Record)}
		data[name] = c
	}
	return c
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	return s.GetWhere(ctx, collection)
}

func (s *MemoryStore) GetWhere(ctx context.Context, collection string, preds ...Predicate) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.WrapStore("get", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[collection]
	if !ok {
		return []Record{}, nil
	}
	out := make([]Record, 0, len(c.order))
	for _, id := range c.order {
		r := c.docs[id]
		if MatchAll(r, preds) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, apperr.WrapStore("get", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[collection]
	if !ok {
		return Record{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	r, ok := c.docs[id]
	if !ok {
		return Record{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := s.newID()
	if err := s.Transact(ctx, AddOp{Collection: collection, ID: id, Fields: fields}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, partial Fields) error {
	return s.Transact(ctx, UpdateOp{Collection: collection, ID: id, Fields: partial})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.Transact(ctx, DeleteOp{Collection: collection, ID: id})
}

func (s *MemoryStore) Transact(ctx context.Context, ops ...Op) error {
	if err := ctx.Err(); err != nil {
		return apperr.WrapStore("transact", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*memCollection)
	stage := func(name string) *memCollection {
		if c, ok := staged[name]; ok {
			return c
		}
		var c *memCollection
		if cur, ok := s.data[name]; ok {
			c = cur.clone()
		} else {
			c = &memCollection{docs: make(map[string]Record)}
		}
		staged[name] = c
		return c
	}
	notFound := func(coll, id string) error {
		return fmt.Errorf("%s/%s: %w", coll, id, apperr.ErrNotFound)
	}

	for _, op := range ops {
		switch o := op.(type) {
		case AddOp:
			c := stage(o.Collection)
			id := o.ID
			if id == "" {
				id = s.newID()
			}
			if _, exists := c.docs[id]; exists {
				return apperr.WrapStore("add", o.Collection, fmt.Errorf("duplicate id %s", id))
			}
			c.order = append(c.order, id)
			c.docs[id] = Record{ID: id, CreatedAt: FormatTime(s.clock()), Fields: o.Fields.Clone()}
		case UpdateOp:
			c := stage(o.Collection)
			r, ok := c.docs[o.ID]
			if !ok {
				return notFound(o.Collection, o.ID)
			}
			r.Fields = r.Fields.Merge(o.Fields)
			c.docs[o.ID] = r
		case DeleteOp:
			c := stage(o.Collection)
			if _, ok := c.docs[o.ID]; !ok {
				return notFound(o.Collection, o.ID)
			}
			delete(c.docs, o.ID)
			for i, id := range c.order {
				if id == o.ID {
					c.order = append(c.order[:i], c.order[i+1:]...)
					break
				}
			}
		case MutateOp:
			c := stage(o.Collection)
			r, ok := c.docs[o.ID]
			if !ok {
				return notFound(o.Collection, o.ID)
			}
			working := r.Clone()
			if err := o.Apply(&working); err != nil {
				return err
			}
			working.ID, working.CreatedAt = r.ID, r.CreatedAt
			c.docs[o.ID] = working
		default:
			return fmt.Errorf("unsupported op %T", op)
		}
	}

	for name, c := range staged {
		s.data[name] = c
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
