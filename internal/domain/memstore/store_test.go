package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abroroo/medicPro-sub000/internal/domain/clinic"
	"github.com/abroroo/medicPro-sub000/internal/domain/identity"
	"github.com/abroroo/medicPro-sub000/internal/domain/isolation"
	"github.com/abroroo/medicPro-sub000/pkg/apperrors"
)

func seedClinic(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	c := &clinic.Clinic{Name: "Test Clinic", Timezone: "UTC"}
	require.NoError(t, s.Clinics().Create(context.Background(), c))
	return c.ID
}

func TestRunInTx_RollsBackOnError(t *testing.T) {
	s := New()
	clinicID := seedClinic(t, s)
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Patients().Create(ctx, &identity.Patient{ClinicID: clinicID, FirstName: "A", LastName: "B"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, total, err := s.Patients().Search(context.Background(), clinicID, identity.PatientSearch{}, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total, "insert must be rolled back")
}

func TestRunInTx_NestedJoinsOuter(t *testing.T) {
	s := New()
	clinicID := seedClinic(t, s)

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		inner := s.RunInTx(ctx, func(ctx context.Context) error {
			return s.Patients().Create(ctx, &identity.Patient{ClinicID: clinicID, FirstName: "A", LastName: "B"})
		})
		require.NoError(t, inner)
		return errors.New("outer fails")
	})
	require.Error(t, err)

	_, total, _ := s.Patients().Search(context.Background(), clinicID, identity.PatientSearch{}, 10, 0)
	assert.Zero(t, total, "inner work belongs to the outer transaction")
}

func TestValidator_DoctorKind(t *testing.T) {
	s := New()
	clinicID := seedClinic(t, s)
	ctx := context.Background()

	doc := &identity.Staff{ClinicID: clinicID, FirstName: "D", LastName: "R", Email: "d@x.uz", Role: "doctor", Active: true}
	desk := &identity.Staff{ClinicID: clinicID, FirstName: "R", LastName: "C", Email: "r@x.uz", Role: "receptionist", Active: true}
	require.NoError(t, s.Staff().Create(ctx, doc))
	require.NoError(t, s.Staff().Create(ctx, desk))

	_, err := s.Validator().ValidateOwned(ctx, clinicID, isolation.KindDoctor, doc.ID)
	require.NoError(t, err)

	_, err = s.Validator().ValidateOwned(ctx, clinicID, isolation.KindDoctor, desk.ID)
	assert.True(t, apperrors.IsNotFound(err), "receptionist is not a doctor")

	_, err = s.Validator().ValidateOwned(ctx, clinicID, isolation.KindStaff, desk.ID)
	require.NoError(t, err)

	_, err = s.Validator().ValidateOwned(ctx, uuid.New(), isolation.KindDoctor, doc.ID)
	assert.True(t, apperrors.IsNotFound(err), "other clinic")
}

func TestFailOn(t *testing.T) {
	s := New()
	clinicID := seedClinic(t, s)
	injected := errors.New("disk full")
	s.FailOn("patient.Create", injected)

	err := s.Patients().Create(context.Background(), &identity.Patient{ClinicID: clinicID, FirstName: "A", LastName: "B"})
	require.ErrorIs(t, err, injected)

	s.FailOn("patient.Create", nil)
	require.NoError(t, s.Patients().Create(context.Background(), &identity.Patient{ClinicID: clinicID, FirstName: "A", LastName: "B"}))
}

func TestPage(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, page(all, 2, 0))
	assert.Equal(t, []int{5}, page(all, 2, 4))
	assert.Nil(t, page(all, 2, 5))
}
