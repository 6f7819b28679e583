package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/abroroo/medicPro-sub000/internal/domain/clinic"
	"github.com/abroroo/medicPro-sub000/internal/domain/identity"
	"github.com/abroroo/medicPro-sub000/internal/domain/memstore"
	"github.com/abroroo/medicPro-sub000/internal/domain/queue"
	"github.com/abroroo/medicPro-sub000/internal/domain/visit"
	"github.com/abroroo/medicPro-sub000/internal/platform/events"
	"github.com/abroroo/medicPro-sub000/internal/platform/metrics"
)

type fixture struct {
	store    *memstore.Store
	identity *identity.Service
	visits   *visit.Service
	queue    *queue.Service
	bus      *events.LocalBus
	metrics  *metrics.Metrics
	clock    *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	logger := zerolog.Nop()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)}

	ids := identity.NewService(st.Patients(), st.Staff(), logger)
	vs := visit.NewService(st.Visits(), st.Notes(), st.Validator(), st, ids, logger).WithClock(clock.Now)
	bus := events.NewLocalBus()
	m := metrics.New(prometheus.NewRegistry())
	qs := queue.NewService(st.Queue(), vs, st.Validator(), st, queue.NewAllocator(st.Queue(), time.UTC), logger).
		WithPublisher(bus).
		WithMetrics(m).
		WithClock(clock.Now)

	t.Cleanup(func() { bus.Close() })
	return &fixture{store: st, identity: ids, visits: vs, queue: qs, bus: bus, metrics: m, clock: clock}
}

func (f *fixture) clinic(t *testing.T) uuid.UUID {
	t.Helper()
	c := &clinic.Clinic{Name: "Clinic " + uuid.NewString()[:8], Timezone: "UTC"}
	require.NoError(t, f.store.Clinics().Create(context.Background(), c))
	return c.ID
}

func (f *fixture) patient(t *testing.T, clinicID uuid.UUID, first string) uuid.UUID {
	t.Helper()
	p := &identity.Patient{FirstName: first, LastName: "Patient", Phone: "+998900000000"}
	require.NoError(t, f.identity.CreatePatient(context.Background(), clinicID, p))
	return p.ID
}

func (f *fixture) staff(t *testing.T, clinicID uuid.UUID, role string) uuid.UUID {
	t.Helper()
	s := &identity.Staff{FirstName: "Staff", LastName: role, Email: uuid.NewString() + "@clinic.uz", Role: role}
	require.NoError(t, f.identity.CreateStaff(context.Background(), clinicID, s))
	return s.ID
}

func (f *fixture) admit(t *testing.T, clinicID, patientID uuid.UUID, doctorID *uuid.UUID) *queue.Admission {
	t.Helper()
	res, err := f.queue.Admit(context.Background(), clinicID, queue.AdmitInput{
		PatientID: patientID,
		DoctorID:  doctorID,
		VisitType: "Consultation",
	})
	require.NoError(t, err)
	return res
}

func ptr[T any](v T) *T { return &v }
