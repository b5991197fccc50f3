package profile

import (
	"context"
	"fmt"

	"careregistry/access"
	"careregistry/db"
	"careregistry/outbox"
	"careregistry/validate"
)

// Service applies the creation and visibility rules for profiles.
type Service struct {
	pool   db.TxBeginner
	repo   Repository
	outbox outbox.Writer
}

// NewService creates a new profile service.
func NewService(pool db.TxBeginner, repo Repository, ob outbox.Writer) *Service {
	return &Service{pool: pool, repo: repo, outbox: ob}
}

// DoctorIDForAccount resolves the caller's doctor profile for access checks.
func (s *Service) DoctorIDForAccount(ctx context.Context, accountID string) (string, bool, error) {
	return s.repo.DoctorIDForAccount(ctx, accountID)
}

// PatientIDForAccount resolves the caller's patient profile for access checks.
func (s *Service) PatientIDForAccount(ctx context.Context, accountID string) (string, bool, error) {
	return s.repo.PatientIDForAccount(ctx, accountID)
}

// ListPatients returns every patient for staff and only the caller's own otherwise.
func (s *Service) ListPatients(ctx context.Context, caller access.Caller, filter PatientFilter) ([]Patient, int, error) {
	return s.repo.ListPatients(ctx, access.Owner(caller), filter)
}

// GetPatient returns a patient the caller may see.
func (s *Service) GetPatient(ctx context.Context, caller access.Caller, id string) (Patient, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return Patient{}, err
	}
	if !access.Owner(caller).Allows(p.Holder.AccountID) {
		return Patient{}, ErrPatientNotFound
	}
	return p, nil
}

// CreatePatient creates a patient profile for in.AccountID, or for the
// caller when it is empty. Any existing account may be targeted.
func (s *Service) CreatePatient(ctx context.Context, caller access.Caller, in CreatePatientInput) (Patient, error) {
	if err := validate.Struct(in); err != nil {
		return Patient{}, err
	}

	target := in.AccountID
	if target == "" {
		target = caller.AccountID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Patient{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	roles, err := s.repo.LockAccount(ctx, tx, target)
	if err != nil {
		return Patient{}, err
	}
	if roles.IsDoctor {
		return Patient{}, ErrRoleTaken
	}

	if err := s.repo.SetRoles(ctx, tx, target, AccountRoles{IsPatient: true}); err != nil {
		return Patient{}, err
	}

	p, err := s.repo.CreatePatient(ctx, tx, target, in.PatientFields)
	if err != nil {
		return Patient{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicPatientCreated, map[string]any{
		"patient_id": p.ID,
		"account_id": target,
		"created_by": caller.AccountID,
	}); err != nil {
		return Patient{}, fmt.Errorf("profile: enqueue patient created: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Patient{}, fmt.Errorf("profile: commit: %w", err)
	}
	return p, nil
}

// UpdatePatient applies patch to a patient the caller may see.
func (s *Service) UpdatePatient(ctx context.Context, caller access.Caller, id string, patch PatientPatch) (Patient, error) {
	if err := validate.Struct(patch); err != nil {
		return Patient{}, err
	}
	if _, err := s.GetPatient(ctx, caller, id); err != nil {
		return Patient{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Patient{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := s.repo.UpdatePatient(ctx, tx, id, patch)
	if err != nil {
		return Patient{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Patient{}, fmt.Errorf("profile: commit: %w", err)
	}
	return p, nil
}

// DeletePatient removes a patient profile the caller may see. The account
// keeps its role flag, so it cannot switch to the other role afterwards.
func (s *Service) DeletePatient(ctx context.Context, caller access.Caller, id string) error {
	if _, err := s.GetPatient(ctx, caller, id); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.DeletePatient(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("profile: commit: %w", err)
	}
	return nil
}

// ListDoctors returns every doctor for staff and only the caller's own otherwise.
func (s *Service) ListDoctors(ctx context.Context, caller access.Caller, filter DoctorFilter) ([]Doctor, int, error) {
	return s.repo.ListDoctors(ctx, access.Owner(caller), filter)
}

// GetDoctor returns a doctor the caller may see.
func (s *Service) GetDoctor(ctx context.Context, caller access.Caller, id string) (Doctor, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		return Doctor{}, err
	}
	if !access.Owner(caller).Allows(d.Holder.AccountID) {
		return Doctor{}, ErrDoctorNotFound
	}
	return d, nil
}

// CreateDoctor creates a doctor profile bound to the caller's own account.
func (s *Service) CreateDoctor(ctx context.Context, caller access.Caller, fields DoctorFields) (Doctor, error) {
	if err := validate.Struct(fields); err != nil {
		return Doctor{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Doctor{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	roles, err := s.repo.LockAccount(ctx, tx, caller.AccountID)
	if err != nil {
		return Doctor{}, err
	}
	if roles.IsPatient {
		return Doctor{}, ErrRoleTaken
	}

	if err := s.repo.SetRoles(ctx, tx, caller.AccountID, AccountRoles{IsDoctor: true}); err != nil {
		return Doctor{}, err
	}

	d, err := s.repo.CreateDoctor(ctx, tx, caller.AccountID, fields)
	if err != nil {
		return Doctor{}, err
	}

	if err := s.outbox.Enqueue(ctx, tx, outbox.TopicDoctorCreated, map[string]any{
		"doctor_id":      d.ID,
		"account_id":     caller.AccountID,
		"specialization": d.Specialization,
	}); err != nil {
		return Doctor{}, fmt.Errorf("profile: enqueue doctor created: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Doctor{}, fmt.Errorf("profile: commit: %w", err)
	}
	return d, nil
}

// UpdateDoctor applies patch to a doctor the caller may see.
func (s *Service) UpdateDoctor(ctx context.Context, caller access.Caller, id string, patch DoctorPatch) (Doctor, error) {
	if err := validate.Struct(patch); err != nil {
		return Doctor{}, err
	}
	if _, err := s.GetDoctor(ctx, caller, id); err != nil {
		return Doctor{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Doctor{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := s.repo.UpdateDoctor(ctx, tx, id, patch)
	if err != nil {
		return Doctor{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Doctor{}, fmt.Errorf("profile: commit: %w", err)
	}
	return d, nil
}

// DeleteDoctor removes a doctor profile the caller may see. The account
// keeps its role flag, so it cannot switch to the other role afterwards.
func (s *Service) DeleteDoctor(ctx context.Context, caller access.Caller, id string) error {
	if _, err := s.GetDoctor(ctx, caller, id); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.DeleteDoctor(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("profile: commit: %w", err)
	}
	return nil
}
