package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Directory answers whether the people and units a booking refers to exist.
// It is maintained outside this service; bookings only read it.
type Directory interface {
	PatientExists(ctx context.Context, id uuid.UUID) (bool, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
	DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store is a Directory that can also be written to and listed, which the
// seed and simulate tools need.
type Store interface {
	Directory
	// InsertDepartment returns the id stored under d.Name, which differs from
	// d.ID when a department with that name already exists.
	InsertDepartment(ctx context.Context, d Department) (uuid.UUID, error)
	InsertDoctor(ctx context.Context, d Doctor) error
	InsertPatient(ctx context.Context, p Patient) error
	ListDoctors(ctx context.Context) ([]Doctor, error)
	ListPatientIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type Department struct {
	ID          uuid.UUID
	Name        string
	Description string
}

type Doctor struct {
	ID           uuid.UUID
	DepartmentID uuid.UUID
	Name         string
	Title        string
	Specialty    string
}

type Patient struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

// Memory is an in-process Directory, used by the memory backend and tests.
type Memory struct {
	mu          sync.RWMutex
	patients    map[uuid.UUID]Patient
	doctors     map[uuid.UUID]Doctor
	departments map[uuid.UUID]Department
}

func NewMemory() *Memory {
	return &Memory{
		patients:    make(map[uuid.UUID]Patient),
		doctors:     make(map[uuid.UUID]Doctor),
		departments: make(map[uuid.UUID]Department),
	}
}

func (m *Memory) AddPatient(p Patient) {
	m.mu.Lock()
	m.patients[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) AddDoctor(d Doctor) {
	m.mu.Lock()
	m.doctors[d.ID] = d
	m.mu.Unlock()
}

func (m *Memory) AddDepartment(d Department) {
	m.mu.Lock()
	m.departments[d.ID] = d
	m.mu.Unlock()
}

func (m *Memory) PatientExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.patients[id]
	return ok, nil
}

func (m *Memory) DoctorExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.doctors[id]
	return ok, nil
}

func (m *Memory) DepartmentExists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.departments[id]
	return ok, nil
}

func (m *Memory) InsertDepartment(_ context.Context, d Department) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.departments {
		if existing.Name == d.Name {
			return existing.ID, nil
		}
	}
	m.departments[d.ID] = d
	return d.ID, nil
}

func (m *Memory) InsertDoctor(_ context.Context, d Doctor) error {
	m.AddDoctor(d)
	return nil
}

func (m *Memory) InsertPatient(_ context.Context, p Patient) error {
	m.AddPatient(p)
	return nil
}

func (m *Memory) ListDoctors(context.Context) ([]Doctor, error) {
	m.mu.RLock()
	out := make([]Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, d)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) ListPatientIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(m.patients))
	for id := range m.patients {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, id)
	}
	return out, nil
}
