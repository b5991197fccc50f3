package assignment

import (
	"context"
	"fmt"

	"careregistry/access"
	"careregistry/apperr"
	"careregistry/db"
	"careregistry/outbox"
	"careregistry/validate"
)

var (
	// ErrNotPatient signals a patient-only query by a caller without a patient profile.
	ErrNotPatient = apperr.New(apperr.ErrForbidden, "assignment: user is not a patient")
	// ErrNotDoctor signals a doctor-only query by a caller without a doctor profile.
	ErrNotDoctor = apperr.New(apperr.ErrForbidden, "assignment: user is not a doctor")
)

// Service applies the visibility and creation rules for assignments.
type Service struct {
	pool     db.TxBeginner
	repo     Repository
	profiles access.ProfileLookup
	outbox   outbox.Writer
}

// NewService creates a new assignment service.
func NewService(pool db.TxBeginner, repo Repository, profiles access.ProfileLookup, ob outbox.Writer) *Service {
	return &Service{pool: pool, repo: repo, profiles: profiles, outbox: ob}
}

// List returns the assignments visible to the caller.
func (s *Service) List(ctx context.Context, caller access.Caller, filter Filter) ([]Assignment, int, error) {
	scope, err := access.AssignmentScope(ctx, caller, s.profiles)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, scope, filter)
}

// Get returns one assignment if the caller may see it.
func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (Assignment, error) {
	scope, err := access.AssignmentScope(ctx, caller, s.profiles)
	if err != nil {
		return Assignment{}, err
	}

	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !scope.Allows(a.Patient.ID, a.Doctor.ID) {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

// Create links a patient to a doctor. The assigned date is set by the store.
func (s *Service) Create(ctx context.Context, caller access.Caller, in CreateInput) (Assignment, error) {
	if err := validate.Struct(in); err != nil {
		return Assignment{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := s.repo.Create(ctx, tx, in)
	if err != nil {
		return Assignment{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicAssignmentCreated, map[string]any{
		"assignment_id": a.ID,
		"patient_id":    a.Patient.ID,
		"doctor_id":     a.Doctor.ID,
		"is_active":     a.IsActive,
		"created_by":    caller.AccountID,
	}); err != nil {
		return Assignment{}, fmt.Errorf("assignment: enqueue created: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("assignment: commit: %w", err)
	}
	return a, nil
}

// Update toggles is_active or edits notes on a visible assignment.
func (s *Service) Update(ctx context.Context, caller access.Caller, id string, patch Patch) (Assignment, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return Assignment{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a, err := s.repo.Update(ctx, tx, id, patch)
	if err != nil {
		return Assignment{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicAssignmentUpdated, map[string]any{
		"assignment_id": a.ID,
		"is_active":     a.IsActive,
		"updated_by":    caller.AccountID,
	}); err != nil {
		return Assignment{}, fmt.Errorf("assignment: enqueue updated: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("assignment: commit: %w", err)
	}
	return a, nil
}

// Delete removes a visible assignment.
func (s *Service) Delete(ctx context.Context, caller access.Caller, id string) error {
	a, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("assignment: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicAssignmentDeleted, map[string]any{
		"assignment_id": a.ID,
		"patient_id":    a.Patient.ID,
		"doctor_id":     a.Doctor.ID,
		"deleted_by":    caller.AccountID,
	}); err != nil {
		return fmt.Errorf("assignment: enqueue deleted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("assignment: commit: %w", err)
	}
	return nil
}

// ListMyDoctors returns the active assignments of the caller's patient profile.
func (s *Service) ListMyDoctors(ctx context.Context, caller access.Caller) ([]Assignment, error) {
	patientID, ok, err := s.profiles.PatientIDForAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("assignment: resolve patient profile: %w", err)
	}
	if !ok {
		return nil, ErrNotPatient
	}
	return s.listActiveFor(ctx, caller, access.Scope{Kind: access.ScopePatient, ProfileID: patientID})
}

// ListMyPatients returns the active assignments of the caller's doctor profile.
func (s *Service) ListMyPatients(ctx context.Context, caller access.Caller) ([]Assignment, error) {
	doctorID, ok, err := s.profiles.DoctorIDForAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, fmt.Errorf("assignment: resolve doctor profile: %w", err)
	}
	if !ok {
		return nil, ErrNotDoctor
	}
	return s.listActiveFor(ctx, caller, access.Scope{Kind: access.ScopeDoctor, ProfileID: doctorID})
}

// listActiveFor intersects the participant scope with the caller's general
// visibility, so a caller holding both profiles sees only what List shows.
func (s *Service) listActiveFor(ctx context.Context, caller access.Caller, participant access.Scope) ([]Assignment, error) {
	visible, err := access.AssignmentScope(ctx, caller, s.profiles)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListActive(ctx, participant)
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, a := range rows {
		if visible.Allows(a.Patient.ID, a.Doctor.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}
