package applications

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/incubator-intake/internal/storage"
)

// Store keeps the application collection in memory, in submission order, and
// rewrites the whole backing store after every mutation.
type Store struct {
	mu      sync.RWMutex
	records []Application

	backend storage.Backend
	newID   func() string
	logger  *zap.Logger
}

// Option configures Store behaviour.
type Option func(*Store)

// WithIDGenerator overrides the identifier source, primarily for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger attaches a logger for create and update events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open loads the collection from backend once and returns a ready Store.
// A backing store that does not parse yields ErrCorruptStore.
func Open(backend storage.Backend, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		newID:   uuid.NewString,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load applications: %w", err)
	}

	records, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	s.records = records

	s.logger.Info("application store loaded", zap.Int("applications", len(records)))
	return s, nil
}

// Upsert creates input when it has no id, or replaces the stored record with
// the same id. The boolean reports whether a new record was created.
// An id that matches no stored record yields ErrNotFound and changes nothing.
func (s *Store) Upsert(input Application) (Application, bool, error) {
	record := input.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	created := record.ID == ""
	var next []Application

	if created {
		record.ID = s.newID()
		next = make([]Application, len(s.records), len(s.records)+1)
		copy(next, s.records)
		next = append(next, record)
	} else {
		next = make([]Application, len(s.records))
		copy(next, s.records)

		matched := false
		for i := range next {
			if next[i].ID == record.ID {
				next[i] = record.Clone()
				matched = true
			}
		}
		if !matched {
			return Application{}, false, fmt.Errorf("%w: %s", ErrNotFound, record.ID)
		}
	}

	if err := s.save(next); err != nil {
		return Application{}, false, err
	}
	s.records = next

	if created {
		s.logger.Info("created application", applicationFields(record)...)
	} else {
		s.logger.Info("updated application", applicationFields(record)...)
	}

	return record.Clone(), created, nil
}

// GetByID returns the first application whose id equals id.
func (s *Store) GetByID(id string) (Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.ID == id {
			return record.Clone(), nil
		}
	}
	return Application{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len reports the number of stored applications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func (s *Store) save(records []Application) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode applications: %w", err)
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("persist applications: %w", err)
	}
	return nil
}

func decodeCollection(data []byte) ([]Application, error) {
	var records []Application
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptStore, err)
	}

	for i, record := range records {
		if record.ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrCorruptStore, i)
		}
	}

	if records == nil {
		records = []Application{}
	}
	return records, nil
}

func applicationFields(a Application) []zap.Field {
	return []zap.Field{
		zap.String("application_id", a.ID),
		zap.String("category", a.Category),
		zap.Int("contributors", len(a.Contributors)),
	}
}
