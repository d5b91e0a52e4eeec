package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// PersonStore is an in-memory implementation of ports.PersonStore.
type PersonStore struct {
	mu     sync.Mutex
	people map[string]*entities.Person
	order  []string

	// Err is returned by every call when set.
	Err error
	// PutErrs fails PutPerson for specific person ids.
	PutErrs map[string]error
	// BeforePut runs before a put is stored, outside the store lock.
	BeforePut func(person *entities.Person)

	Gets int
	Puts int
}

// NewPersonStore creates a PersonStore seeded with people.
func NewPersonStore(people ...entities.Person) *PersonStore {
	m := &PersonStore{
		people:  make(map[string]*entities.Person),
		PutErrs: make(map[string]error),
	}
	for i := range people {
		m.store(&people[i])
	}
	return m
}

func (m *PersonStore) store(p *entities.Person) {
	if _, ok := m.people[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.people[p.ID] = p.Clone()
}

// EnsureSchema is a no-op.
func (m *PersonStore) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close is a no-op.
func (m *PersonStore) Close() error {
	return nil
}

// GetPerson returns a copy of the stored person, or (nil, nil).
func (m *PersonStore) GetPerson(_ context.Context, id string) (*entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.people[id]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

// PutPerson stores a copy of person.
func (m *PersonStore) PutPerson(_ context.Context, person *entities.Person) error {
	if m.BeforePut != nil {
		m.BeforePut(person)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Puts++
	if m.Err != nil {
		return m.Err
	}
	if err := m.PutErrs[person.ID]; err != nil {
		return err
	}
	m.store(person)
	return nil
}

// DeletePerson removes a person.
func (m *PersonStore) DeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.people[id]; !ok {
		return entities.NewNotFound(id)
	}
	delete(m.people, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListPeople returns copies of every person in insertion order.
func (m *PersonStore) ListPeople(_ context.Context) ([]entities.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	result := make([]entities.Person, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, *m.people[id].Clone())
	}
	return result, nil
}

// Person returns the stored record without counting a read. Tests use it
// to inspect state.
func (m *PersonStore) Person(id string) *entities.Person {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return nil
	}
	return p.Clone()
}

// PutCount returns the number of PutPerson calls.
func (m *PersonStore) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Puts
}
