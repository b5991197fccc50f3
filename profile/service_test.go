package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"careregistry/access"
	"careregistry/apperr"
	"careregistry/db/dbtest"
	"careregistry/outbox"
)

var birthday = time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

func patientFields() PatientFields {
	return PatientFields{
		DateOfBirth: birthday,
		Gender:      GenderFemale,
		Address:     "1 Main St",
		PhoneNumber: "+15550100",
	}
}

func doctorFields(license string) DoctorFields {
	return DoctorFields{
		Specialization:    SpecializationCardiology,
		LicenseNumber:     license,
		YearsOfExperience: 12,
		Hospital:          "General",
	}
}

func newTestService(accounts ...string) (*Service, *fakeRepository, *dbtest.Pool, *dbtest.Outbox) {
	repo := newFakeRepository()
	for _, id := range accounts {
		repo.accounts[id] = &AccountRoles{}
	}
	pool := &dbtest.Pool{}
	ob := &dbtest.Outbox{}
	return NewService(pool, repo, ob), repo, pool, ob
}

func TestService_CreatePatientDefaultsToCaller(t *testing.T) {
	svc, repo, pool, ob := newTestService("acct-1")
	caller := access.Caller{AccountID: "acct-1"}

	p, err := svc.CreatePatient(context.Background(), caller, CreatePatientInput{PatientFields: patientFields()})
	if err != nil {
		t.Fatalf("create patient: %v", err)
	}
	if p.Holder.AccountID != "acct-1" {
		t.Fatalf("expected profile bound to caller, got %q", p.Holder.AccountID)
	}
	if !repo.accounts["acct-1"].IsPatient {
		t.Fatal("expected is_patient to be set")
	}
	if !pool.Last().Committed {
		t.Fatal("expected commit")
	}
	if got := ob.Topics(); len(got) != 1 || got[0] != outbox.TopicPatientCreated {
		t.Fatalf("expected patient.created event, got %v", got)
	}
}

func TestService_CreatePatientForOtherAccount(t *testing.T) {
	svc, repo, _, _ := newTestService("acct-1", "acct-2")
	caller := access.Caller{AccountID: "acct-1"}

	p, err := svc.CreatePatient(context.Background(), caller, CreatePatientInput{
		AccountID:     "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		PatientFields: patientFields(),
	})
	if !errors.Is(err, ErrAccountNotFound) || !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected account not found, got %v (%+v)", err, p)
	}

	repo.accounts["1b4e28ba-2fa1-11d2-883f-0016d3cca427"] = &AccountRoles{}
	p, err = svc.CreatePatient(context.Background(), caller, CreatePatientInput{
		AccountID:     "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		PatientFields: patientFields(),
	})
	if err != nil {
		t.Fatalf("create patient for other account: %v", err)
	}
	if p.Holder.AccountID != "1b4e28ba-2fa1-11d2-883f-0016d3cca427" {
		t.Fatalf("expected target account, got %q", p.Holder.AccountID)
	}
	if repo.accounts["acct-1"].IsPatient {
		t.Fatal("caller flag must not change")
	}
}

func TestService_CreatePatientConflict(t *testing.T) {
	svc, _, pool, ob := newTestService("acct-1")
	caller := access.Caller{AccountID: "acct-1"}
	ctx := context.Background()

	if _, err := svc.CreatePatient(ctx, caller, CreatePatientInput{PatientFields: patientFields()}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreatePatient(ctx, caller, CreatePatientInput{PatientFields: patientFields()})
	if !errors.Is(err, ErrPatientExists) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if tx := pool.Last(); tx.Committed || !tx.Rolled {
		t.Fatalf("expected rollback on conflict, got %+v", tx)
	}
	if len(ob.Events) != 1 {
		t.Fatalf("expected one event, got %v", ob.Topics())
	}
}

func TestService_CreatePatientValidation(t *testing.T) {
	svc, _, pool, _ := newTestService("acct-1")
	fields := patientFields()
	fields.Gender = "X"
	fields.PhoneNumber = "0123456789012345"

	_, err := svc.CreatePatient(context.Background(), access.Caller{AccountID: "acct-1"}, CreatePatientInput{PatientFields: fields})
	var invalid apperr.Fields
	if !errors.As(err, &invalid) {
		t.Fatalf("expected field errors, got %v", err)
	}
	if _, ok := invalid["gender"]; !ok {
		t.Errorf("expected gender failure, got %v", invalid)
	}
	if _, ok := invalid["phone_number"]; !ok {
		t.Errorf("expected phone_number failure, got %v", invalid)
	}
	if len(pool.Txs) != 0 {
		t.Fatal("validation must fail before a transaction starts")
	}
}

func TestService_CreateDoctorForcesCaller(t *testing.T) {
	svc, repo, _, ob := newTestService("acct-1")

	d, err := svc.CreateDoctor(context.Background(), access.Caller{AccountID: "acct-1"}, doctorFields("LIC-1"))
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	if d.Holder.AccountID != "acct-1" {
		t.Fatalf("expected caller account, got %q", d.Holder.AccountID)
	}
	if !repo.accounts["acct-1"].IsDoctor {
		t.Fatal("expected is_doctor to be set")
	}
	if got := ob.Topics(); len(got) != 1 || got[0] != outbox.TopicDoctorCreated {
		t.Fatalf("expected doctor.created event, got %v", got)
	}

	_, err = svc.CreateDoctor(context.Background(), access.Caller{AccountID: "acct-1"}, doctorFields("LIC-2"))
	if !errors.Is(err, ErrDoctorExists) {
		t.Fatalf("expected ErrDoctorExists, got %v", err)
	}
}

func TestService_DuplicateLicenseAcrossAccounts(t *testing.T) {
	svc, _, pool, _ := newTestService("acct-1", "acct-2")
	ctx := context.Background()

	if _, err := svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-1"}, doctorFields("LIC-1")); err != nil {
		t.Fatalf("first doctor: %v", err)
	}
	_, err := svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-2"}, doctorFields("LIC-1"))
	if !errors.Is(err, ErrDuplicateLicense) || !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected license conflict, got %v", err)
	}
	if tx := pool.Last(); tx.Committed || !tx.Rolled {
		t.Fatalf("expected rollback, got %+v", tx)
	}
}

func TestService_RoleExclusivity(t *testing.T) {
	svc, _, _, _ := newTestService("acct-1", "acct-2")
	ctx := context.Background()

	if _, err := svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-1"}, doctorFields("LIC-1")); err != nil {
		t.Fatalf("create doctor: %v", err)
	}
	_, err := svc.CreatePatient(ctx, access.Caller{AccountID: "acct-1"}, CreatePatientInput{PatientFields: patientFields()})
	if !errors.Is(err, ErrRoleTaken) {
		t.Fatalf("expected ErrRoleTaken for doctor becoming patient, got %v", err)
	}

	if _, err := svc.CreatePatient(ctx, access.Caller{AccountID: "acct-2"}, CreatePatientInput{PatientFields: patientFields()}); err != nil {
		t.Fatalf("create patient: %v", err)
	}
	_, err = svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-2"}, doctorFields("LIC-2"))
	if !errors.Is(err, ErrRoleTaken) {
		t.Fatalf("expected ErrRoleTaken for patient becoming doctor, got %v", err)
	}
}

func TestService_PatientVisibility(t *testing.T) {
	svc, _, _, _ := newTestService("acct-1", "acct-2")
	ctx := context.Background()
	alice := access.Caller{AccountID: "acct-1"}
	bob := access.Caller{AccountID: "acct-2"}
	staff := access.Caller{AccountID: "staff", IsStaff: true}

	pa, err := svc.CreatePatient(ctx, alice, CreatePatientInput{PatientFields: patientFields()})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, err := svc.CreatePatient(ctx, bob, CreatePatientInput{PatientFields: patientFields()}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	mine, total, err := svc.ListPatients(ctx, alice, PatientFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(mine) != 1 || mine[0].ID != pa.ID {
		t.Fatalf("expected only own profile, got %d %+v", total, mine)
	}

	all, total, err := svc.ListPatients(ctx, staff, PatientFilter{})
	if err != nil {
		t.Fatalf("staff list: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected staff to see both, got %d", total)
	}

	if _, err := svc.GetPatient(ctx, bob, pa.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected other caller to get not found, got %v", err)
	}
	if _, err := svc.GetPatient(ctx, staff, pa.ID); err != nil {
		t.Fatalf("staff get: %v", err)
	}

	address := "2 Side St"
	if _, err := svc.UpdatePatient(ctx, bob, pa.ID, PatientPatch{Address: &address}); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected update by other caller to fail, got %v", err)
	}
	if err := svc.DeletePatient(ctx, bob, pa.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected delete by other caller to fail, got %v", err)
	}
}

func TestService_UpdatePatientPartial(t *testing.T) {
	svc, _, _, _ := newTestService("acct-1")
	ctx := context.Background()
	caller := access.Caller{AccountID: "acct-1"}

	p, err := svc.CreatePatient(ctx, caller, CreatePatientInput{PatientFields: patientFields()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	history := "asthma"
	updated, err := svc.UpdatePatient(ctx, caller, p.ID, PatientPatch{MedicalHistory: &history})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.MedicalHistory != "asthma" || updated.Address != p.Address {
		t.Fatalf("expected only medical history to change, got %+v", updated)
	}

	future := time.Now().Add(72 * time.Hour)
	if _, err := svc.UpdatePatient(ctx, caller, p.ID, PatientPatch{DateOfBirth: &future}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected future birth date to be rejected, got %v", err)
	}
}

func TestService_DeleteKeepsRoleFlag(t *testing.T) {
	svc, repo, _, _ := newTestService("acct-1")
	ctx := context.Background()
	caller := access.Caller{AccountID: "acct-1"}

	d, err := svc.CreateDoctor(ctx, caller, doctorFields("LIC-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.DeleteDoctor(ctx, caller, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !repo.accounts["acct-1"].IsDoctor {
		t.Fatal("expected is_doctor to survive profile deletion")
	}
	if _, ok, _ := svc.DoctorIDForAccount(ctx, "acct-1"); ok {
		t.Fatal("expected no doctor profile after delete")
	}

	if _, err := svc.CreatePatient(ctx, caller, CreatePatientInput{PatientFields: patientFields()}); !errors.Is(err, ErrRoleTaken) {
		t.Fatalf("expected role to stay taken, got %v", err)
	}
	if _, err := svc.CreateDoctor(ctx, caller, doctorFields("LIC-1")); err != nil {
		t.Fatalf("expected doctor profile to be recreatable: %v", err)
	}
}

func TestService_ListDoctorsFilter(t *testing.T) {
	svc, _, _, _ := newTestService("acct-1", "acct-2")
	ctx := context.Background()

	if _, err := svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-1"}, doctorFields("LIC-1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	neuro := doctorFields("LIC-2")
	neuro.Specialization = SpecializationNeurology
	if _, err := svc.CreateDoctor(ctx, access.Caller{AccountID: "acct-2"}, neuro); err != nil {
		t.Fatalf("create: %v", err)
	}

	staff := access.Caller{AccountID: "staff", IsStaff: true}
	got, total, err := svc.ListDoctors(ctx, staff, DoctorFilter{Specialization: SpecializationNeurology})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || got[0].LicenseNumber != "LIC-2" {
		t.Fatalf("expected only the neurologist, got %+v", got)
	}
}

type fakeRepository struct {
	accounts map[string]*AccountRoles
	patients map[string]Patient
	doctors  map[string]Doctor
	nextID   int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		accounts: make(map[string]*AccountRoles),
		patients: make(map[string]Patient),
		doctors:  make(map[string]Doctor),
		nextID:   1,
	}
}

func (f *fakeRepository) id(prefix string) string {
	id := fmt.Sprintf("%s-%d", prefix, f.nextID)
	f.nextID++
	return id
}

func (f *fakeRepository) LockAccount(_ context.Context, _ pgx.Tx, accountID string) (AccountRoles, error) {
	roles, ok := f.accounts[accountID]
	if !ok {
		return AccountRoles{}, ErrAccountNotFound
	}
	return *roles, nil
}

// SetRoles applies immediately; rollback of flags is covered by the
// integration tests.
func (f *fakeRepository) SetRoles(_ context.Context, _ pgx.Tx, accountID string, roles AccountRoles) error {
	if _, ok := f.accounts[accountID]; !ok {
		return ErrAccountNotFound
	}
	f.accounts[accountID] = &roles
	return nil
}

func (f *fakeRepository) CreatePatient(_ context.Context, _ pgx.Tx, accountID string, fields PatientFields) (Patient, error) {
	for _, p := range f.patients {
		if p.Holder.AccountID == accountID {
			return Patient{}, ErrPatientExists
		}
	}
	p := Patient{
		ID:             f.id("patient"),
		Holder:         Holder{AccountID: accountID},
		DateOfBirth:    fields.DateOfBirth,
		Gender:         fields.Gender,
		Address:        fields.Address,
		PhoneNumber:    fields.PhoneNumber,
		MedicalHistory: fields.MedicalHistory,
	}
	f.patients[p.ID] = p
	return p, nil
}

func (f *fakeRepository) GetPatient(_ context.Context, id string) (Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	return p, nil
}

func (f *fakeRepository) ListPatients(_ context.Context, owner access.OwnerFilter, filter PatientFilter) ([]Patient, int, error) {
	out := []Patient{}
	for _, p := range f.patients {
		if !owner.Allows(p.Holder.AccountID) {
			continue
		}
		if filter.Gender != "" && p.Gender != filter.Gender {
			continue
		}
		if filter.Search != "" && !strings.Contains(p.PhoneNumber, filter.Search) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeRepository) UpdatePatient(_ context.Context, _ pgx.Tx, id string, patch PatientPatch) (Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return Patient{}, ErrPatientNotFound
	}
	if patch.DateOfBirth != nil {
		p.DateOfBirth = *patch.DateOfBirth
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Address != nil {
		p.Address = *patch.Address
	}
	if patch.PhoneNumber != nil {
		p.PhoneNumber = *patch.PhoneNumber
	}
	if patch.MedicalHistory != nil {
		p.MedicalHistory = *patch.MedicalHistory
	}
	f.patients[id] = p
	return p, nil
}

func (f *fakeRepository) DeletePatient(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := f.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(f.patients, id)
	return nil
}

func (f *fakeRepository) PatientIDForAccount(_ context.Context, accountID string) (string, bool, error) {
	for _, p := range f.patients {
		if p.Holder.AccountID == accountID {
			return p.ID, true, nil
		}
	}
	return "", false, nil
}

func (f *fakeRepository) CreateDoctor(_ context.Context, _ pgx.Tx, accountID string, fields DoctorFields) (Doctor, error) {
	for _, d := range f.doctors {
		if d.Holder.AccountID == accountID {
			return Doctor{}, ErrDoctorExists
		}
		if d.LicenseNumber == fields.LicenseNumber {
			return Doctor{}, ErrDuplicateLicense
		}
	}
	d := Doctor{
		ID:                f.id("doctor"),
		Holder:            Holder{AccountID: accountID},
		Specialization:    fields.Specialization,
		LicenseNumber:     fields.LicenseNumber,
		YearsOfExperience: fields.YearsOfExperience,
		Hospital:          fields.Hospital,
	}
	f.doctors[d.ID] = d
	return d, nil
}

func (f *fakeRepository) GetDoctor(_ context.Context, id string) (Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return Doctor{}, ErrDoctorNotFound
	}
	return d, nil
}

func (f *fakeRepository) ListDoctors(_ context.Context, owner access.OwnerFilter, filter DoctorFilter) ([]Doctor, int, error) {
	out := []Doctor{}
	for _, d := range f.doctors {
		if !owner.Allows(d.Holder.AccountID) {
			continue
		}
		if filter.Specialization != "" && d.Specialization != filter.Specialization {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeRepository) UpdateDoctor(_ context.Context, _ pgx.Tx, id string, patch DoctorPatch) (Doctor, error) {
	d, ok := f.doctors[id]
	if !ok {
		return Doctor{}, ErrDoctorNotFound
	}
	if patch.LicenseNumber != nil {
		for otherID, other := range f.doctors {
			if otherID != id && other.LicenseNumber == *patch.LicenseNumber {
				return Doctor{}, ErrDuplicateLicense
			}
		}
		d.LicenseNumber = *patch.LicenseNumber
	}
	if patch.Specialization != nil {
		d.Specialization = *patch.Specialization
	}
	if patch.YearsOfExperience != nil {
		d.YearsOfExperience = *patch.YearsOfExperience
	}
	if patch.Hospital != nil {
		d.Hospital = *patch.Hospital
	}
	f.doctors[id] = d
	return d, nil
}

func (f *fakeRepository) DeleteDoctor(_ context.Context, _ pgx.Tx, id string) error {
	if _, ok := f.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(f.doctors, id)
	return nil
}

func (f *fakeRepository) DoctorIDForAccount(_ context.Context, accountID string) (string, bool, error) {
	for _, d := range f.doctors {
		if d.Holder.AccountID == accountID {
			return d.ID, true, nil
		}
	}
	return "", false, nil
}
