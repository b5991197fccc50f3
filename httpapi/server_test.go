package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careregistry/access"
	"careregistry/account"
	"careregistry/assignment"
	"careregistry/profile"
)

const testToken = "good-token"

type stubAccounts struct {
	caller      access.Caller
	registered  account.Account
	registerErr error
	pair        account.TokenPair
	loginErr    error
	refreshErr  error
	deleteErr   error
	deletedID   string
}

func (s *stubAccounts) Register(_ context.Context, req account.RegisterRequest) (account.Account, error) {
	if s.registerErr != nil {
		return account.Account{}, s.registerErr
	}
	acct := s.registered
	acct.Email = req.Email
	return acct, nil
}

func (s *stubAccounts) Login(_ context.Context, _ account.LoginRequest) (account.TokenPair, account.Account, error) {
	return s.pair, account.Account{}, s.loginErr
}

func (s *stubAccounts) Refresh(_ context.Context, _ string) (account.TokenPair, error) {
	return s.pair, s.refreshErr
}

func (s *stubAccounts) Authenticate(_ context.Context, token string) (access.Caller, error) {
	if token != testToken {
		return access.Caller{}, account.ErrInvalidToken
	}
	return s.caller, nil
}

func (s *stubAccounts) Delete(_ context.Context, _ access.Caller, id string) error {
	s.deletedID = id
	return s.deleteErr
}

type stubProfiles struct {
	gotCaller     access.Caller
	gotPatientIn  profile.CreatePatientInput
	gotPatch      profile.PatientPatch
	gotFilter     profile.PatientFilter
	patient       profile.Patient
	patients      []profile.Patient
	doctor        profile.Doctor
	err           error
	createDoctors int
}

func (s *stubProfiles) ListPatients(_ context.Context, c access.Caller, f profile.PatientFilter) ([]profile.Patient, int, error) {
	s.gotCaller, s.gotFilter = c, f
	return s.patients, len(s.patients), s.err
}

func (s *stubProfiles) GetPatient(_ context.Context, c access.Caller, _ string) (profile.Patient, error) {
	s.gotCaller = c
	return s.patient, s.err
}

func (s *stubProfiles) CreatePatient(_ context.Context, c access.Caller, in profile.CreatePatientInput) (profile.Patient, error) {
	s.gotCaller, s.gotPatientIn = c, in
	return s.patient, s.err
}

func (s *stubProfiles) UpdatePatient(_ context.Context, c access.Caller, _ string, patch profile.PatientPatch) (profile.Patient, error) {
	s.gotCaller, s.gotPatch = c, patch
	return s.patient, s.err
}

func (s *stubProfiles) DeletePatient(_ context.Context, _ access.Caller, _ string) error {
	return s.err
}

func (s *stubProfiles) ListDoctors(_ context.Context, _ access.Caller, _ profile.DoctorFilter) ([]profile.Doctor, int, error) {
	return nil, 0, s.err
}

func (s *stubProfiles) GetDoctor(_ context.Context, _ access.Caller, _ string) (profile.Doctor, error) {
	return s.doctor, s.err
}

func (s *stubProfiles) CreateDoctor(_ context.Context, c access.Caller, _ profile.DoctorFields) (profile.Doctor, error) {
	s.gotCaller = c
	s.createDoctors++
	return s.doctor, s.err
}

func (s *stubProfiles) UpdateDoctor(_ context.Context, _ access.Caller, _ string, _ profile.DoctorPatch) (profile.Doctor, error) {
	return s.doctor, s.err
}

func (s *stubProfiles) DeleteDoctor(_ context.Context, _ access.Caller, _ string) error {
	return s.err
}

type stubAssignments struct {
	rows      []assignment.Assignment
	current   assignment.Assignment
	gotFilter assignment.Filter
	gotPatch  assignment.Patch
	updates   int
	err       error
	mineErr   error
}

func (s *stubAssignments) List(_ context.Context, _ access.Caller, f assignment.Filter) ([]assignment.Assignment, int, error) {
	s.gotFilter = f
	return s.rows, len(s.rows), s.err
}

func (s *stubAssignments) Get(_ context.Context, _ access.Caller, _ string) (assignment.Assignment, error) {
	return s.current, s.err
}

func (s *stubAssignments) Create(_ context.Context, _ access.Caller, _ assignment.CreateInput) (assignment.Assignment, error) {
	return s.current, s.err
}

func (s *stubAssignments) Update(_ context.Context, _ access.Caller, _ string, p assignment.Patch) (assignment.Assignment, error) {
	s.gotPatch = p
	s.updates++
	return s.current, s.err
}

func (s *stubAssignments) Delete(_ context.Context, _ access.Caller, _ string) error {
	return s.err
}

func (s *stubAssignments) ListMyDoctors(_ context.Context, _ access.Caller) ([]assignment.Assignment, error) {
	return s.rows, s.mineErr
}

func (s *stubAssignments) ListMyPatients(_ context.Context, _ access.Caller) ([]assignment.Assignment, error) {
	return s.rows, s.mineErr
}

type fixture struct {
	accounts    *stubAccounts
	profiles    *stubProfiles
	assignments *stubAssignments
	handler     http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		accounts:    &stubAccounts{caller: access.Caller{AccountID: "acct-1"}},
		profiles:    &stubProfiles{},
		assignments: &stubAssignments{},
	}
	f.handler = NewServer(f.accounts, f.profiles, f.assignments, nil, Options{}).Routes()
	return f
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestRoot_Links(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	var links map[string]any
	decode(t, rec, &links)
	assert.Equal(t, "http://example.com/patients", links["patients"])
	assert.Contains(t, links, "mappings")
	assert.NotContains(t, links, "login")

	auth, ok := links["auth"].(map[string]any)
	require.True(t, ok, "auth links must be nested")
	assert.Equal(t, "http://example.com/register", auth["register"])
	assert.Equal(t, "http://example.com/login", auth["login"])
	assert.Equal(t, "http://example.com/refresh", auth["refresh"])
}

func TestRegister(t *testing.T) {
	f := newFixture()
	f.accounts.registered = account.Account{ID: "acct-9", Name: "Alice"}

	rec := f.do(http.MethodPost, "/register", `{"email":"a@example.com","name":"Alice","password":"x","password2":"x"}`, false)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp accountResponse
	decode(t, rec, &resp)
	assert.Equal(t, "acct-9", resp.ID)
	assert.Equal(t, "a@example.com", resp.Email)
	assert.False(t, resp.IsDoctor)
	assert.False(t, resp.IsPatient)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newFixture()
	f.accounts.registerErr = account.ErrPasswordMismatch

	rec := f.do(http.MethodPost, "/register", `{"email":"a@example.com","name":"A","password":"a","password2":"b"}`, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MalformedBody(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/register", `{"email":`, false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture()
	f.accounts.pair = account.TokenPair{Access: "acc", Refresh: "ref"}

	rec := f.do(http.MethodPost, "/login", `{"email":"a@example.com","password":"secretpass"}`, false)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenResponse
	decode(t, rec, &resp)
	assert.Equal(t, tokenResponse{Access: "acc", Refresh: "ref"}, resp)

	f.accounts.loginErr = account.ErrInvalidCredentials
	rec = f.do(http.MethodPost, "/login", `{"email":"a@example.com","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_RequiresToken(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/refresh", `{}`, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string][]string
	decode(t, rec, &body)
	assert.Contains(t, body, "refresh")

	f.accounts.refreshErr = account.ErrInvalidToken
	rec = f.do(http.MethodPost, "/refresh", `{"refresh":"used"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutes_RequireCredential(t *testing.T) {
	f := newFixture()

	for _, path := range []string{"/patients", "/doctors", "/mappings", "/mappings/patient_doctors"} {
		rec := f.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/patients", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListPatients_PassesCallerAndFilters(t *testing.T) {
	f := newFixture()
	f.profiles.patients = []profile.Patient{{
		ID:          "p1",
		Holder:      profile.Holder{AccountID: "acct-1", Email: "a@example.com", Name: "A"},
		DateOfBirth: time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Gender:      profile.GenderFemale,
	}}

	rec := f.do(http.MethodGet, "/patients?gender=F&search=555&page=2&page_size=5", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, access.Caller{AccountID: "acct-1"}, f.profiles.gotCaller)
	assert.Equal(t, "F", f.profiles.gotFilter.Gender)
	assert.Equal(t, "555", f.profiles.gotFilter.Search)
	assert.Equal(t, 2, f.profiles.gotFilter.Page.Number)
	assert.Equal(t, 5, f.profiles.gotFilter.Page.Size)

	var resp listResponse[patientResponse]
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "1990-05-17", resp.Results[0].DateOfBirth)
	assert.Equal(t, "acct-1", resp.Results[0].User.ID)
}

func TestListPatients_BadPage(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodGet, "/patients?page=abc", "", true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePatient(t *testing.T) {
	f := newFixture()
	f.profiles.patient = profile.Patient{ID: "p1", Holder: profile.Holder{AccountID: "acct-2"}}

	rec := f.do(http.MethodPost, "/patients",
		`{"user_id":"acct-2","date_of_birth":"1990-05-17","gender":"F","address":"1 Main","phone_number":"555"}`, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	in := f.profiles.gotPatientIn
	assert.Equal(t, "acct-2", in.AccountID)
	assert.Equal(t, time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC), in.DateOfBirth)
	assert.Equal(t, "F", in.Gender)
}

func TestCreatePatient_BadDate(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/patients", `{"date_of_birth":"17/05/1990"}`, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string][]string
	decode(t, rec, &body)
	assert.Contains(t, body, "date_of_birth")
}

func TestCreatePatient_Conflict(t *testing.T) {
	f := newFixture()
	f.profiles.err = profile.ErrPatientExists

	rec := f.do(http.MethodPost, "/patients",
		`{"date_of_birth":"1990-05-17","gender":"F","address":"1 Main","phone_number":"555"}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePatient_MissingAccount(t *testing.T) {
	f := newFixture()
	f.profiles.err = profile.ErrAccountNotFound

	rec := f.do(http.MethodPost, "/patients",
		`{"user_id":"1b4e28ba-2fa1-11d2-883f-0016d3cca427","date_of_birth":"1990-05-17","gender":"F","address":"1 Main","phone_number":"555"}`, true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPatchPatient_OnlySentFields(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPatch, "/patients/p1", `{"medical_history":"asthma"}`, true)

	require.Equal(t, http.StatusOK, rec.Code)
	patch := f.profiles.gotPatch
	require.NotNil(t, patch.MedicalHistory)
	assert.Equal(t, "asthma", *patch.MedicalHistory)
	assert.Nil(t, patch.Address)
	assert.Nil(t, patch.DateOfBirth)
}

func TestReplacePatient_RequiresAllFields(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPut, "/patients/p1", `{"medical_history":"asthma"}`, true)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string][]string
	decode(t, rec, &body)
	assert.Contains(t, body, "gender")
	assert.Contains(t, body, "address")
}

func TestGetPatient_NotVisible(t *testing.T) {
	f := newFixture()
	f.profiles.err = profile.ErrPatientNotFound

	rec := f.do(http.MethodGet, "/patients/p2", "", true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateDoctor_UsesCaller(t *testing.T) {
	f := newFixture()
	f.profiles.doctor = profile.Doctor{ID: "d1", Holder: profile.Holder{AccountID: "acct-1"}, LicenseNumber: "LIC"}

	rec := f.do(http.MethodPost, "/doctors",
		`{"user_id":"someone-else","specialization":"CARD","license_number":"LIC","years_of_experience":3,"hospital":"General"}`, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "acct-1", f.profiles.gotCaller.AccountID)
	var resp doctorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "acct-1", resp.User.ID)
}

func TestCreateDoctor_DuplicateLicense(t *testing.T) {
	f := newFixture()
	f.profiles.err = profile.ErrDuplicateLicense

	rec := f.do(http.MethodPost, "/doctors",
		`{"specialization":"CARD","license_number":"LIC","years_of_experience":3,"hospital":"General"}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMappings_ActiveFilter(t *testing.T) {
	f := newFixture()
	f.assignments.rows = []assignment.Assignment{{ID: "m1", IsActive: true, AssignedDate: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)}}

	rec := f.do(http.MethodGet, "/mappings?is_active=true", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.assignments.gotFilter.IsActive)
	assert.True(t, *f.assignments.gotFilter.IsActive)
	var resp listResponse[mappingResponse]
	decode(t, rec, &resp)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "2024-02-03", resp.Results[0].AssignedDate)

	rec = f.do(http.MethodGet, "/mappings?is_active=maybe", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatientDoctors_Forbidden(t *testing.T) {
	f := newFixture()
	f.assignments.mineErr = assignment.ErrNotPatient

	rec := f.do(http.MethodGet, "/mappings/patient_doctors", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.assignments.mineErr = assignment.ErrNotDoctor
	rec = f.do(http.MethodGet, "/mappings/doctor_patients", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPatientDoctors_ReturnsPlainList(t *testing.T) {
	f := newFixture()
	f.assignments.rows = []assignment.Assignment{{ID: "m1", IsActive: true}, {ID: "m2", IsActive: true}}

	rec := f.do(http.MethodGet, "/mappings/patient_doctors", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []mappingResponse
	decode(t, rec, &resp)
	assert.Len(t, resp, 2)
}

func TestUpdateMapping_IdentityImmutable(t *testing.T) {
	f := newFixture()
	f.assignments.current = assignment.Assignment{
		ID:      "m1",
		Patient: profile.Patient{ID: "p1"},
		Doctor:  profile.Doctor{ID: "d1"},
	}

	rec := f.do(http.MethodPut, "/mappings/m1", `{"patient_id":"p2","doctor_id":"d1","is_active":false}`, true)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.assignments.updates)

	rec = f.do(http.MethodPut, "/mappings/m1", `{"patient_id":"p1","doctor_id":"d1","is_active":false}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.assignments.gotPatch.IsActive)
	assert.False(t, *f.assignments.gotPatch.IsActive)
	assert.Nil(t, f.assignments.gotPatch.Notes)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodDelete, "/accounts/acct-7", "", true)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acct-7", f.accounts.deletedID)

	f.accounts.deleteErr = account.ErrStaffOnly
	rec = f.do(http.MethodDelete, "/accounts/acct-7", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnexpectedError_Is500WithoutDetail(t *testing.T) {
	f := newFixture()
	f.profiles.err = errors.New("connection reset")

	rec := f.do(http.MethodGet, "/patients/p1", "", true)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestAuthRateLimit(t *testing.T) {
	f := newFixture()
	f.accounts.loginErr = account.ErrInvalidCredentials
	handler := NewServer(f.accounts, f.profiles, f.assignments, nil, Options{AuthRateLimit: 2}).Routes()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}
