package httpapi

import (
	"time"

	"careregistry/account"
	"careregistry/apperr"
	"careregistry/assignment"
	"careregistry/profile"
)

const dateLayout = "2006-01-02"

type accountResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsDoctor  bool   `json:"is_doctor"`
	IsPatient bool   `json:"is_patient"`
}

func toAccountResponse(a account.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Name:      a.Name,
		IsDoctor:  a.IsDoctor,
		IsPatient: a.IsPatient,
	}
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type holderResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type patientResponse struct {
	ID             string         `json:"id"`
	User           holderResponse `json:"user"`
	DateOfBirth    string         `json:"date_of_birth"`
	Gender         string         `json:"gender"`
	Address        string         `json:"address"`
	PhoneNumber    string         `json:"phone_number"`
	MedicalHistory string         `json:"medical_history"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

func toPatientResponse(p profile.Patient) patientResponse {
	return patientResponse{
		ID:             p.ID,
		User:           holderResponse{ID: p.Holder.AccountID, Email: p.Holder.Email, Name: p.Holder.Name},
		DateOfBirth:    p.DateOfBirth.Format(dateLayout),
		Gender:         p.Gender,
		Address:        p.Address,
		PhoneNumber:    p.PhoneNumber,
		MedicalHistory: p.MedicalHistory,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type doctorResponse struct {
	ID                string         `json:"id"`
	User              holderResponse `json:"user"`
	Specialization    string         `json:"specialization"`
	LicenseNumber     string         `json:"license_number"`
	YearsOfExperience int            `json:"years_of_experience"`
	Hospital          string         `json:"hospital"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
}

func toDoctorResponse(d profile.Doctor) doctorResponse {
	return doctorResponse{
		ID:                d.ID,
		User:              holderResponse{ID: d.Holder.AccountID, Email: d.Holder.Email, Name: d.Holder.Name},
		Specialization:    d.Specialization,
		LicenseNumber:     d.LicenseNumber,
		YearsOfExperience: d.YearsOfExperience,
		Hospital:          d.Hospital,
		CreatedAt:         d.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

type mappingResponse struct {
	ID           string          `json:"id"`
	Patient      patientResponse `json:"patient"`
	Doctor       doctorResponse  `json:"doctor"`
	AssignedDate string          `json:"assigned_date"`
	IsActive     bool            `json:"is_active"`
	Notes        string          `json:"notes"`
}

func toMappingResponse(a assignment.Assignment) mappingResponse {
	return mappingResponse{
		ID:           a.ID,
		Patient:      toPatientResponse(a.Patient),
		Doctor:       toDoctorResponse(a.Doctor),
		AssignedDate: a.AssignedDate.Format(dateLayout),
		IsActive:     a.IsActive,
		Notes:        a.Notes,
	}
}

func toMappingResponses(in []assignment.Assignment) []mappingResponse {
	out := make([]mappingResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toMappingResponse(a))
	}
	return out
}

type authLinks struct {
	Register string `json:"register"`
	Login    string `json:"login"`
	Refresh  string `json:"refresh"`
}

type rootLinks struct {
	Auth     authLinks `json:"auth"`
	Patients string    `json:"patients"`
	Doctors  string    `json:"doctors"`
	Mappings string    `json:"mappings"`
}

type listResponse[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// patientRequest is the wire form of a patient write. Dates arrive as
// YYYY-MM-DD strings and every field is optional until the handler decides
// whether the write is full or partial.
type patientRequest struct {
	UserID         string  `json:"user_id"`
	DateOfBirth    *string `json:"date_of_birth"`
	Gender         *string `json:"gender"`
	Address        *string `json:"address"`
	PhoneNumber    *string `json:"phone_number"`
	MedicalHistory *string `json:"medical_history"`
}

func (p patientRequest) birthDate() (*time.Time, error) {
	if p.DateOfBirth == nil {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *p.DateOfBirth)
	if err != nil {
		return nil, apperr.Fields{"date_of_birth": "date has wrong format, use YYYY-MM-DD"}
	}
	return &t, nil
}

func (p patientRequest) fields() (profile.PatientFields, error) {
	dob, err := p.birthDate()
	if err != nil {
		return profile.PatientFields{}, err
	}
	var f profile.PatientFields
	if dob != nil {
		f.DateOfBirth = *dob
	}
	f.Gender = deref(p.Gender)
	f.Address = deref(p.Address)
	f.PhoneNumber = deref(p.PhoneNumber)
	f.MedicalHistory = deref(p.MedicalHistory)
	return f, nil
}

func (p patientRequest) patch() (profile.PatientPatch, error) {
	dob, err := p.birthDate()
	if err != nil {
		return profile.PatientPatch{}, err
	}
	return profile.PatientPatch{
		DateOfBirth:    dob,
		Gender:         p.Gender,
		Address:        p.Address,
		PhoneNumber:    p.PhoneNumber,
		MedicalHistory: p.MedicalHistory,
	}, nil
}

type doctorRequest struct {
	Specialization    *string `json:"specialization"`
	LicenseNumber     *string `json:"license_number"`
	YearsOfExperience *int    `json:"years_of_experience"`
	Hospital          *string `json:"hospital"`
}

func (d doctorRequest) fields() (profile.DoctorFields, error) {
	if d.YearsOfExperience == nil {
		return profile.DoctorFields{}, apperr.Fields{"years_of_experience": "this field is required"}
	}
	return profile.DoctorFields{
		Specialization:    deref(d.Specialization),
		LicenseNumber:     deref(d.LicenseNumber),
		YearsOfExperience: *d.YearsOfExperience,
		Hospital:          deref(d.Hospital),
	}, nil
}

func (d doctorRequest) patch() profile.DoctorPatch {
	return profile.DoctorPatch{
		Specialization:    d.Specialization,
		LicenseNumber:     d.LicenseNumber,
		YearsOfExperience: d.YearsOfExperience,
		Hospital:          d.Hospital,
	}
}

type mappingUpdateRequest struct {
	PatientID *string `json:"patient_id"`
	DoctorID  *string `json:"doctor_id"`
	IsActive  *bool   `json:"is_active"`
	Notes     *string `json:"notes"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
