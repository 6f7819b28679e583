package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abroroo/medicPro-sub000/internal/domain/identity"
	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/internal/domain/queue"
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

// ErrUniqueViolation mirrors the database rejecting a duplicate queue number
// or a second serving item.
var ErrUniqueViolation = errors.New("memstore: unique constraint violated")

// -- Patients --

type patientRepo struct{ s *Store }

func (r patientRepo) Create(ctx context.Context, p *identity.Patient) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("patient.Create"); err != nil {
		return err
	}
	if _, ok := r.s.st.clinics[p.ClinicID]; !ok {
		return errors.New("memstore: patient references unknown clinic")
	}
	p.ID = uuid.New()
	p.CreatedAt, p.UpdatedAt = r.s.now(), r.s.now()
	r.s.st.patients[p.ID] = *p
	return nil
}

func (r patientRepo) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*identity.Patient, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.st.patients[id]
	if !ok || p.ClinicID != clinicID {
		return nil, apperrors.NewNotFoundError("patient")
	}
	return &p, nil
}

func (r patientRepo) Update(ctx context.Context, p *identity.Patient) error {
	defer r.s.lock(ctx)()
	cur, ok := r.s.st.patients[p.ID]
	if !ok || cur.ClinicID != p.ClinicID {
		return apperrors.NewNotFoundError("patient")
	}
	next := *p
	next.LastVisitAt, next.LastVisitType = cur.LastVisitAt, cur.LastVisitType
	next.CreatedAt, next.UpdatedAt = cur.CreatedAt, r.s.now()
	r.s.st.patients[p.ID] = next
	return nil
}

func (r patientRepo) Search(ctx context.Context, clinicID uuid.UUID, q identity.PatientSearch, limit, offset int) ([]*identity.Patient, int, error) {
	defer r.s.lock(ctx)()
	needle := strings.ToLower(q.Query)
	var out []*identity.Patient
	for _, p := range r.s.st.patients {
		if p.ClinicID != clinicID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.FirstName+"\x00"+p.LastName+"\x00"+p.Phone), needle) {
			continue
		}
		if q.Phone != "" && p.Phone != q.Phone {
			continue
		}
		if q.Gender != "" && p.Gender != q.Gender {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].FirstName < out[j].FirstName
	})
	return page(out, limit, offset), len(out), nil
}

func (r patientRepo) RefreshLastVisit(ctx context.Context, clinicID, patientID uuid.UUID) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("patient.RefreshLastVisit"); err != nil {
		return err
	}
	p, ok := r.s.st.patients[patientID]
	if !ok || p.ClinicID != clinicID {
		return nil
	}
	var latest *visit.Visit
	for _, v := range r.s.st.visits {
		if v.ClinicID != clinicID || v.PatientID != patientID {
			continue
		}
		if latest == nil || v.VisitDate.After(latest.VisitDate) ||
			(v.VisitDate.Equal(latest.VisitDate) && v.CreatedAt.After(latest.CreatedAt)) {
			v := v
			latest = &v
		}
	}
	p.LastVisitAt, p.LastVisitType = nil, nil
	if latest != nil {
		at, typ := latest.VisitDate, latest.VisitType
		p.LastVisitAt, p.LastVisitType = &at, &typ
	}
	r.s.st.patients[patientID] = p
	return nil
}

// -- Staff --

type staffRepo struct{ s *Store }

func (r staffRepo) Create(ctx context.Context, m *identity.Staff) error {
	defer r.s.lock(ctx)()
	for _, existing := range r.s.st.staff {
		if existing.ClinicID == m.ClinicID && existing.Email == m.Email {
			return apperrors.NewValidationError("email", "email is already registered in this clinic")
		}
	}
	m.ID = uuid.New()
	m.CreatedAt, m.UpdatedAt = r.s.now(), r.s.now()
	r.s.st.staff[m.ID] = *m
	return nil
}

func (r staffRepo) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*identity.Staff, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.st.staff[id]
	if !ok || m.ClinicID != clinicID {
		return nil, apperrors.NewNotFoundError("staff")
	}
	return &m, nil
}

func (r staffRepo) List(ctx context.Context, clinicID uuid.UUID, f identity.StaffFilter, limit, offset int) ([]*identity.Staff, int, error) {
	defer r.s.lock(ctx)()
	var out []*identity.Staff
	for _, m := range r.s.st.staff {
		if m.ClinicID != clinicID || (f.Role != "" && m.Role != f.Role) || (f.Active != nil && m.Active != *f.Active) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return page(out, limit, offset), len(out), nil
}

func (r staffRepo) SetActive(ctx context.Context, clinicID, id uuid.UUID, active bool) (bool, error) {
	defer r.s.lock(ctx)()
	m, ok := r.s.st.staff[id]
	if !ok || m.ClinicID != clinicID {
		return false, nil
	}
	m.Active, m.UpdatedAt = active, r.s.now()
	r.s.st.staff[id] = m
	return true, nil
}

// -- Visits --

type visitRepo struct{ s *Store }

func (r visitRepo) Create(ctx context.Context, v *visit.Visit) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("visit.Create"); err != nil {
		return err
	}
	v.ID = uuid.New()
	v.CreatedAt, v.UpdatedAt = r.s.now(), r.s.now()
	r.s.st.visits[v.ID] = *v
	return nil
}

func (r visitRepo) GetByID(ctx context.Context, clinicID, id uuid.UUID) (*visit.Visit, error) {
	defer r.s.lock(ctx)()
	v, ok := r.s.st.visits[id]
	if !ok || v.ClinicID != clinicID {
		return nil, apperrors.NewNotFoundError("visit")
	}
	return &v, nil
}

func (r visitRepo) Update(ctx context.Context, v *visit.Visit) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("visit.Update"); err != nil {
		return err
	}
	cur, ok := r.s.st.visits[v.ID]
	if !ok || cur.ClinicID != v.ClinicID {
		return apperrors.NewNotFoundError("visit")
	}
	v.CreatedAt, v.UpdatedAt = cur.CreatedAt, r.s.now()
	r.s.st.visits[v.ID] = *v
	return nil
}

func (r visitRepo) Delete(ctx context.Context, clinicID, id uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()
	v, ok := r.s.st.visits[id]
	if !ok || v.ClinicID != clinicID {
		return false, nil
	}
	delete(r.s.st.visits, id)
	for nid, n := range r.s.st.notes {
		if n.VisitID == id {
			delete(r.s.st.notes, nid)
		}
	}
	for iid, it := range r.s.st.items {
		if it.VisitID != nil && *it.VisitID == id {
			it.VisitID = nil
			r.s.st.items[iid] = it
		}
	}
	return true, nil
}

func (r visitRepo) List(ctx context.Context, clinicID uuid.UUID, f visit.ListFilter, limit, offset int) ([]*visit.Visit, int, error) {
	defer r.s.lock(ctx)()
	var out []*visit.Visit
	for _, v := range r.s.st.visits {
		if v.ClinicID != clinicID {
			continue
		}
		if f.PatientID != nil && v.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && v.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && v.Status != *f.Status {
			continue
		}
		if f.From != nil && v.VisitDate.Before(*f.From) {
			continue
		}
		if f.To != nil && !v.VisitDate.Before(*f.To) {
			continue
		}
		v := v
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VisitDate.After(out[j].VisitDate) })
	return page(out, limit, offset), len(out), nil
}

func (r visitRepo) HasActiveQueueItem(ctx context.Context, clinicID, visitID uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()
	for _, it := range r.s.st.items {
		if it.ClinicID == clinicID && it.VisitID != nil && *it.VisitID == visitID && !it.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

// -- Clinical Notes --

type noteRepo struct{ s *Store }

func (r noteRepo) CreateNote(ctx context.Context, n *visit.ClinicalNote) error {
	defer r.s.lock(ctx)()
	n.ID = uuid.New()
	n.CreatedAt, n.UpdatedAt = r.s.now(), r.s.now()
	r.s.st.notes[n.ID] = *n
	return nil
}

func (r noteRepo) GetNote(ctx context.Context, clinicID, id uuid.UUID) (*visit.ClinicalNote, error) {
	defer r.s.lock(ctx)()
	n, ok := r.s.st.notes[id]
	if !ok || n.ClinicID != clinicID {
		return nil, apperrors.NewNotFoundError("clinical note")
	}
	return &n, nil
}

func (r noteRepo) UpdateNote(ctx context.Context, n *visit.ClinicalNote) error {
	defer r.s.lock(ctx)()
	cur, ok := r.s.st.notes[n.ID]
	if !ok || cur.ClinicID != n.ClinicID {
		return apperrors.NewNotFoundError("clinical note")
	}
	n.UpdatedAt = r.s.now()
	r.s.st.notes[n.ID] = *n
	return nil
}

func (r noteRepo) DeleteNote(ctx context.Context, clinicID, id uuid.UUID) (bool, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("note.Delete"); err != nil {
		return false, err
	}
	n, ok := r.s.st.notes[id]
	if !ok || n.ClinicID != clinicID {
		return false, nil
	}
	delete(r.s.st.notes, id)
	return true, nil
}

func (r noteRepo) ListNotes(ctx context.Context, clinicID, visitID uuid.UUID) ([]*visit.ClinicalNote, error) {
	defer r.s.lock(ctx)()
	var out []*visit.ClinicalNote
	for _, n := range r.s.st.notes {
		if n.ClinicID == clinicID && n.VisitID == visitID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// -- Queue --

type queueRepo struct{ s *Store }

func dayKey(clinicID uuid.UUID, day time.Time) counterKey {
	return counterKey{clinic: clinicID, day: day.Format("2006-01-02")}
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (r queueRepo) IncrementCounter(ctx context.Context, clinicID uuid.UUID, day time.Time) (int, error) {
	defer r.s.lock(ctx)()
	if err := r.s.fault("queue.IncrementCounter"); err != nil {
		return 0, err
	}
	k := dayKey(clinicID, day)
	r.s.st.counters[k]++
	return r.s.st.counters[k], nil
}

func (r queueRepo) Create(ctx context.Context, it *queue.Item) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("queue.Create"); err != nil {
		return err
	}
	for _, other := range r.s.st.items {
		if other.ClinicID == it.ClinicID && sameDay(other.QueueDay, it.QueueDay) && other.QueueNumber == it.QueueNumber {
			return ErrUniqueViolation
		}
	}
	it.ID = uuid.New()
	it.CreatedAt, it.UpdatedAt = r.s.now(), r.s.now()
	r.s.st.items[it.ID] = *it
	return nil
}

func (r queueRepo) GetForUpdate(ctx context.Context, clinicID, id uuid.UUID) (*queue.Item, error) {
	defer r.s.lock(ctx)()
	it, ok := r.s.st.items[id]
	if !ok || it.ClinicID != clinicID {
		return nil, isolation.NotFound(isolation.KindQueueItem)
	}
	return &it, nil
}

func (r queueRepo) UpdateStatus(ctx context.Context, it *queue.Item) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("queue.UpdateStatus"); err != nil {
		return err
	}
	cur, ok := r.s.st.items[it.ID]
	if !ok || cur.ClinicID != it.ClinicID {
		return isolation.NotFound(isolation.KindQueueItem)
	}
	if it.Status == queue.StatusServing {
		for id, other := range r.s.st.items {
			if id != it.ID && other.ClinicID == it.ClinicID && sameDay(other.QueueDay, it.QueueDay) &&
				other.Status == queue.StatusServing {
				return ErrUniqueViolation
			}
		}
	}
	cur.Status, cur.CalledAt, cur.CompletedAt, cur.UpdatedAt = it.Status, it.CalledAt, it.CompletedAt, r.s.now()
	it.UpdatedAt = cur.UpdatedAt
	r.s.st.items[it.ID] = cur
	return nil
}

func (r queueRepo) FindServing(ctx context.Context, clinicID uuid.UUID) (*queue.Item, error) {
	defer r.s.lock(ctx)()
	for _, it := range r.s.st.items {
		if it.ClinicID == clinicID && it.Status == queue.StatusServing {
			return &it, nil
		}
	}
	return nil, nil
}

func (r queueRepo) NextWaiting(ctx context.Context, clinicID uuid.UUID, day time.Time) (*queue.Item, error) {
	defer r.s.lock(ctx)()
	var next *queue.Item
	for _, it := range r.s.st.items {
		if it.ClinicID != clinicID || !sameDay(it.QueueDay, day) || it.Status != queue.StatusWaiting {
			continue
		}
		if next == nil || it.QueueNumber < next.QueueNumber {
			it := it
			next = &it
		}
	}
	return next, nil
}

func (r queueRepo) ListDay(ctx context.Context, clinicID uuid.UUID, day time.Time) ([]*queue.Entry, error) {
	defer r.s.lock(ctx)()
	st := r.s.st
	var out []*queue.Entry
	for _, it := range st.items {
		if it.ClinicID != clinicID || !sameDay(it.QueueDay, day) {
			continue
		}
		p, ok := st.patients[it.PatientID]
		if !ok || p.ClinicID != clinicID {
			continue
		}
		e := &queue.Entry{Item: it, PatientName: p.FullName(), PatientPhone: p.Phone}
		if it.DoctorID != nil {
			if d, ok := st.staff[*it.DoctorID]; ok && d.ClinicID == clinicID {
				name := d.FirstName + " " + d.LastName
				e.DoctorName = &name
			}
		}
		if it.VisitID != nil {
			if v, ok := st.visits[*it.VisitID]; ok && v.ClinicID == clinicID {
				status := string(v.Status)
				e.VisitStatus = &status
			}
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueNumber < out[j].QueueNumber })
	return out, nil
}

func (r queueRepo) CountByStatus(ctx context.Context, clinicID uuid.UUID, day time.Time) (map[queue.Status]int, error) {
	defer r.s.lock(ctx)()
	counts := map[queue.Status]int{}
	for _, it := range r.s.st.items {
		if it.ClinicID == clinicID && sameDay(it.QueueDay, day) {
			counts[it.Status]++
		}
	}
	return counts, nil
}

func (r queueRepo) AddEvent(ctx context.Context, e *queue.Event) error {
	defer r.s.lock(ctx)()
	if err := r.s.fault("queue.AddEvent"); err != nil {
		return err
	}
	e.ID = uuid.New()
	e.CreatedAt = r.s.now()
	r.s.st.events = append(r.s.st.events, *e)
	return nil
}

func (r queueRepo) ListEvents(ctx context.Context, clinicID, itemID uuid.UUID) ([]*queue.Event, error) {
	defer r.s.lock(ctx)()
	var out []*queue.Event
	for _, e := range r.s.st.events {
		if e.ClinicID == clinicID && e.QueueItemID == itemID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}
