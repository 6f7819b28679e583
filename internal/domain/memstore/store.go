// Package memstore is an in-memory implementation of every domain repository
// plus the transaction runner and isolation validator. Transactions hold a
// store-wide lock and roll back to a snapshot on error, which makes the
// engine's concurrency properties testable without a database.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abroroo/medicPro-sub000/internal/domain/clinic"
	"github.com/abroroo/medicPro-sub000/internal/domain/identity"
	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/domain/queue"
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

type counterKey struct {
	clinic uuid.UUID
	day    string
}

type state struct {
	clinics  map[uuid.UUID]clinic.Clinic
	patients map[uuid.UUID]identity.Patient
	staff    map[uuid.UUID]identity.Staff
	visits   map[uuid.UUID]visit.Visit
	notes    map[uuid.UUID]visit.ClinicalNote
	items    map[uuid.UUID]queue.Item
	counters map[counterKey]int
	events   []queue.Event
}

func newState() state {
	return state{
		clinics:  map[uuid.UUID]clinic.Clinic{},
		patients: map[uuid.UUID]identity.Patient{},
		staff:    map[uuid.UUID]identity.Staff{},
		visits:   map[uuid.UUID]visit.Visit{},
		notes:    map[uuid.UUID]visit.ClinicalNote{},
		items:    map[uuid.UUID]queue.Item{},
		counters: map[counterKey]int{},
	}
}

func (st state) clone() state {
	c := newState()
	for k, v := range st.clinics {
		c.clinics[k] = v
	}
	for k, v := range st.patients {
		c.patients[k] = v
	}
	for k, v := range st.staff {
		c.staff[k] = v
	}
	for k, v := range st.visits {
		c.visits[k] = v
	}
	for k, v := range st.notes {
		c.notes[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.counters {
		c.counters[k] = v
	}
	c.events = append([]queue.Event(nil), st.events...)
	return c
}

type txKey struct{}

// Store holds all entities of all clinics.
type Store struct {
	mu     sync.Mutex
	st     state
	faults map[string]error
	now    func() time.Time
}

func New() *Store {
	return &Store{st: newState(), faults: map[string]error{}, now: time.Now}
}

// FailOn makes the named operation (for example "visit.Update") return err
// until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	return s.faults[op]
}

// RunInTx runs fn under the store lock. State changes made by fn are
// discarded when it returns an error. Nested calls join the outer
// transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snap
		return err
	}
	return nil
}

// lock takes the store lock unless ctx already runs inside a transaction of
// this store.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Clinics() clinic.Repository { return clinicRepo{s} }
func (s *Store) Patients() identity.PatientRepository { return patientRepo{s} }
func (s *Store) Staff() identity.StaffRepository { return staffRepo{s} }
func (s *Store) Visits() visit.Repository { return visitRepo{s} }
func (s *Store) Notes() visit.NoteRepository { return noteRepo{s} }
func (s *Store) Queue() queue.Repository { return queueRepo{s} }
func (s *Store) Validator() isolation.Validator { return validator{s} }

// -- Isolation --

type validator struct{ s *Store }

func (v validator) ValidateOwned(ctx context.Context, clinicID uuid.UUID, kind isolation.Kind, id uuid.UUID) (*isolation.Ref, error) {
	defer v.s.lock(ctx)()
	st := v.s.st
	ref := &isolation.Ref{Kind: kind, ID: id, ClinicID: clinicID}

	switch kind {
	case isolation.KindPatient:
		p, ok := st.patients[id]
		if !ok || p.ClinicID != clinicID {
			return nil, isolation.NotFound(kind)
		}
		ref.PatientID = p.ID
	case isolation.KindStaff, isolation.KindDoctor:
		m, ok := st.staff[id]
		if !ok || m.ClinicID != clinicID {
			return nil, isolation.NotFound(kind)
		}
		if kind == isolation.KindDoctor && !isolation.IsBookableDoctor(m.Role, m.Active) {
			return nil, isolation.NotFound(kind)
		}
		ref.Role, ref.Active = m.Role, m.Active
	case isolation.KindVisit:
		vi, ok := st.visits[id]
		if !ok || vi.ClinicID != clinicID {
			return nil, isolation.NotFound(kind)
		}
		doctor := vi.DoctorID
		ref.PatientID, ref.DoctorID, ref.Status = vi.PatientID, &doctor, string(vi.Status)
	case isolation.KindQueueItem:
		it, ok := st.items[id]
		if !ok || it.ClinicID != clinicID {
			return nil, isolation.NotFound(kind)
		}
		ref.PatientID, ref.DoctorID, ref.VisitID, ref.Status = it.PatientID, it.DoctorID, it.VisitID, string(it.Status)
	case isolation.KindClinicalNote:
		n, ok := st.notes[id]
		if !ok || n.ClinicID != clinicID {
			return nil, isolation.NotFound(kind)
		}
		visitID, doctor := n.VisitID, n.DoctorID
		ref.VisitID, ref.DoctorID = &visitID, &doctor
	default:
		return nil, fmt.Errorf("memstore: unknown kind %q", kind)
	}
	return ref, nil
}

// -- Clinics --

type clinicRepo struct{ s *Store }

func (r clinicRepo) Create(ctx context.Context, c *clinic.Clinic) error {
	defer r.s.lock(ctx)()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.s.now()
	r.s.st.clinics[c.ID] = *c
	return nil
}

func (r clinicRepo) GetByID(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.st.clinics[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("clinic")
	}
	return &c, nil
}

func (r clinicRepo) List(ctx context.Context, limit, offset int) ([]*clinic.Clinic, int, error) {
	defer r.s.lock(ctx)()
	var all []*clinic.Clinic
	for _, c := range r.s.st.clinics {
		c := c
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return page(all, limit, offset), len(all), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
