package database

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Backend is the table capability a Store runs on. Implementations must wrap
// ErrRelationNotFound when the named table does not exist.
type Backend interface {
	Select(ctx context.Context, table string, q Query) ([]Record, error)
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	Update(ctx context.Context, table string, where []Predicate, patch Record) ([]Record, error)
	Delete(ctx context.Context, table string, where []Predicate) ([]Record, error)
}

// Store exposes CRUD by logical entity name over a Backend whose physical
// table names may be snake_cased and/or pluralized.
type Store struct {
	backend  Backend
	resolved *cache.Cache
	log      *logrus.Entry
}

// NewStore wraps a backend. Resolved table names are cached for the lifetime
// of the Store.
func NewStore(backend Backend, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		backend:  backend,
		resolved: cache.New(cache.NoExpiration, 0),
		log:      logger.WithField("component", "store"),
	}
}

// Resolve returns the physical table backing entity, probing the backend
// with an empty one-row select when the name is not cached yet.
func (s *Store) Resolve(ctx context.Context, entity string) (string, error) {
	var table string
	err := s.run(ctx, "resolve", entity, func(t string) error {
		_, err := s.backend.Select(ctx, t, Query{Limit: 1})
		table = t
		return err
	})
	return table, err
}

// List returns every record of entity, optionally sorted and limited.
func (s *Store) List(ctx context.Context, entity, sort string, limit int) ([]Record, error) {
	return s.Filter(ctx, entity, nil, sort, limit)
}

// Filter returns the records matching every condition in filter.
func (s *Store) Filter(ctx context.Context, entity string, filter Filter, sort string, limit int) ([]Record, error) {
	q := Query{Where: TranslateFilter(filter), Order: ParseSort(sort), Limit: limit}

	var out []Record
	err := s.run(ctx, "filter", entity, func(table string) error {
		rows, err := s.backend.Select(ctx, table, q)
		out = rows
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// Get returns the record with the given id, or nil when there is none.
func (s *Store) Get(ctx context.Context, entity, id string) (Record, error) {
	q := Query{Where: []Predicate{Eq("id", id)}, Limit: 1}

	var out Record
	err := s.run(ctx, "get", entity, func(table string) error {
		rows, err := s.backend.Select(ctx, table, q)
		out = first(rows)
		return err
	})
	return out, err
}

// Create inserts data and returns the stored record. An "id" is generated
// when data does not carry one.
func (s *Store) Create(ctx context.Context, entity string, data Record) (Record, error) {
	rec := make(Record, len(data)+1)
	for k, v := range data {
		rec[k] = v
	}
	if rec.ID() == "" {
		rec["id"] = uuid.NewString()
	}

	var out Record
	err := s.run(ctx, "create", entity, func(table string) error {
		created, err := s.backend.Insert(ctx, table, rec)
		out = created
		return err
	})
	return out, err
}

// Update applies patch to the record with the given id and returns the
// updated record, or nil when no record matched.
func (s *Store) Update(ctx context.Context, entity, id string, patch Record) (Record, error) {
	clean := make(Record, len(patch))
	for k, v := range patch {
		if k == "id" {
			continue
		}
		clean[k] = v
	}

	var out Record
	err := s.run(ctx, "update", entity, func(table string) error {
		rows, err := s.backend.Update(ctx, table, []Predicate{Eq("id", id)}, clean)
		out = first(rows)
		return err
	})
	return out, err
}

// Delete removes the record with the given id and returns it, or nil when no
// record matched.
func (s *Store) Delete(ctx context.Context, entity, id string) (Record, error) {
	var out Record
	err := s.run(ctx, "delete", entity, func(table string) error {
		rows, err := s.backend.Delete(ctx, table, []Predicate{Eq("id", id)})
		out = first(rows)
		return err
	})
	return out, err
}

// run executes fn against the cached table for entity, or against each
// candidate in turn until one exists.
func (s *Store) run(ctx context.Context, op, entity string, fn func(table string) error) error {
	entity = strings.TrimSpace(entity)
	if entity == "" {
		return &StoreError{Kind: KindUnresolved, Op: op, Entity: entity}
	}

	if cached, ok := s.resolved.Get(entity); ok {
		table := cached.(string)
		err := fn(table)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRelationNotFound) {
			return &StoreError{Kind: KindBackend, Op: op, Entity: entity, Table: table, Err: err}
		}
		s.log.WithFields(logrus.Fields{"entity": entity, "table": table}).Warn("cached table vanished, resolving again")
		s.resolved.Delete(entity)
	}

	for _, table := range Candidates(entity) {
		if err := ctx.Err(); err != nil {
			return &StoreError{Kind: KindBackend, Op: op, Entity: entity, Table: table, Err: err}
		}
		err := fn(table)
		if err == nil {
			s.resolved.Set(entity, table, cache.NoExpiration)
			return nil
		}
		if errors.Is(err, ErrRelationNotFound) {
			s.log.WithFields(logrus.Fields{"entity": entity, "table": table}).Debug("candidate table missing")
			continue
		}
		return &StoreError{Kind: KindBackend, Op: op, Entity: entity, Table: table, Err: err}
	}

	return &StoreError{Kind: KindUnresolved, Op: op, Entity: entity}
}

func first(rows []Record) Record {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
