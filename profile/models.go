package profile

import (
	"time"

	"careregistry/db"
)

// Gender codes accepted for patients.
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// Specialization codes accepted for doctors.
const (
	SpecializationGP          = "GP"
	SpecializationCardiology  = "CARD"
	SpecializationNeurology   = "NEURO"
	SpecializationPediatrics  = "PED"
	SpecializationDermatology = "DERMA"
	SpecializationOrthopedics = "ORTHO"
	SpecializationOther       = "OTHER"
)

// Holder is the account a profile extends, as shown alongside the profile.
type Holder struct {
	AccountID string
	Email     string
	Name      string
}

// Patient mirrors patient_profiles joined with its account.
type Patient struct {
	ID             string
	Holder         Holder
	DateOfBirth    time.Time
	Gender         string
	Address        string
	PhoneNumber    string
	MedicalHistory string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Doctor mirrors doctor_profiles joined with its account.
type Doctor struct {
	ID                string
	Holder            Holder
	Specialization    string
	LicenseNumber     string
	YearsOfExperience int
	Hospital          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PatientFields are the writable patient columns.
type PatientFields struct {
	DateOfBirth    time.Time `json:"date_of_birth" validate:"required,notfuture"`
	Gender         string    `json:"gender" validate:"required,oneof=M F O"`
	Address        string    `json:"address" validate:"required"`
	PhoneNumber    string    `json:"phone_number" validate:"required,max=15"`
	MedicalHistory string    `json:"medical_history"`
}

// CreatePatientInput creates a patient profile. An empty AccountID targets
// the caller's own account.
type CreatePatientInput struct {
	AccountID string `json:"user_id" validate:"omitempty,uuid"`
	PatientFields
}

// PatientPatch carries a partial patient update; nil fields are left alone.
type PatientPatch struct {
	DateOfBirth    *time.Time `json:"date_of_birth" validate:"omitempty,notfuture"`
	Gender         *string    `json:"gender" validate:"omitempty,oneof=M F O"`
	Address        *string    `json:"address" validate:"omitempty,min=1"`
	PhoneNumber    *string    `json:"phone_number" validate:"omitempty,min=1,max=15"`
	MedicalHistory *string    `json:"medical_history"`
}

// DoctorFields are the writable doctor columns.
type DoctorFields struct {
	Specialization    string `json:"specialization" validate:"required,oneof=GP CARD NEURO PED DERMA ORTHO OTHER"`
	LicenseNumber     string `json:"license_number" validate:"required,max=50"`
	YearsOfExperience int    `json:"years_of_experience" validate:"gte=0"`
	Hospital          string `json:"hospital" validate:"required,max=255"`
}

// DoctorPatch carries a partial doctor update; nil fields are left alone.
type DoctorPatch struct {
	Specialization    *string `json:"specialization" validate:"omitempty,oneof=GP CARD NEURO PED DERMA ORTHO OTHER"`
	LicenseNumber     *string `json:"license_number" validate:"omitempty,min=1,max=50"`
	YearsOfExperience *int    `json:"years_of_experience" validate:"omitempty,gte=0"`
	Hospital          *string `json:"hospital" validate:"omitempty,min=1,max=255"`
}

// PatientFilter narrows a patient listing.
type PatientFilter struct {
	Gender string
	Search string
	Page   db.Page
}

// DoctorFilter narrows a doctor listing.
type DoctorFilter struct {
	Specialization string
	Search         string
	Page           db.Page
}

// Full converts complete fields into a patch that overwrites every column.
func (f PatientFields) Full() PatientPatch {
	return PatientPatch{
		DateOfBirth:    &f.DateOfBirth,
		Gender:         &f.Gender,
		Address:        &f.Address,
		PhoneNumber:    &f.PhoneNumber,
		MedicalHistory: &f.MedicalHistory,
	}
}

// Full converts complete fields into a patch that overwrites every column.
func (f DoctorFields) Full() DoctorPatch {
	return DoctorPatch{
		Specialization:    &f.Specialization,
		LicenseNumber:     &f.LicenseNumber,
		YearsOfExperience: &f.YearsOfExperience,
		Hospital:          &f.Hospital,
	}
}
