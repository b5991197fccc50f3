package assignment

import (
	"time"

	"careregistry/db"
	"careregistry/profile"
)

// Assignment links one patient profile to one doctor profile.
type Assignment struct {
	ID           string
	Patient      profile.Patient
	Doctor       profile.Doctor
	AssignedDate time.Time
	IsActive     bool
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput names the two profiles to link. IsActive defaults to true.
type CreateInput struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	IsActive  *bool  `json:"is_active"`
	Notes     string `json:"notes"`
}

// Patch carries the mutable fields; the linked profiles and the assigned
// date never change.
type Patch struct {
	IsActive *bool   `json:"is_active"`
	Notes    *string `json:"notes"`
}

// Filter narrows an assignment listing.
type Filter struct {
	IsActive *bool
	Page     db.Page
}
