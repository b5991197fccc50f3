package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"careregistry/access"
	"careregistry/assignment"
	"careregistry/outbox"
	"careregistry/profile"
)

// Profiles is the part of profile.Service the actors drive.
type Profiles interface {
	CreatePatient(ctx context.Context, caller access.Caller, in profile.CreatePatientInput) (profile.Patient, error)
	CreateDoctor(ctx context.Context, caller access.Caller, fields profile.DoctorFields) (profile.Doctor, error)
}

// Assignments is the part of assignment.Service the actors drive.
type Assignments interface {
	List(ctx context.Context, caller access.Caller, filter assignment.Filter) ([]assignment.Assignment, int, error)
	Create(ctx context.Context, caller access.Caller, in assignment.CreateInput) (assignment.Assignment, error)
	Update(ctx context.Context, caller access.Caller, id string, patch assignment.Patch) (assignment.Assignment, error)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(minMS, spreadMS int) {
	time.Sleep(time.Duration(minMS+rand.Intn(spreadMS)) * time.Millisecond)
}

// RoleClaimer races patient and doctor profile creation for the same unassigned
// accounts. Exactly one claim per account may win.
func RoleClaimer(ctx context.Context, svc Profiles, callers []access.Caller, licensePrefix string, stop <-chan struct{}) error {
	for i := 0; !stopped(ctx, stop); i++ {
		caller := callers[rand.Intn(len(callers))]

		var err error
		if rand.Intn(2) == 0 {
			_, err = svc.CreatePatient(ctx, caller, profile.CreatePatientInput{PatientFields: profile.PatientFields{
				DateOfBirth: time.Date(1970+rand.Intn(40), time.March, 1, 0, 0, 0, 0, time.UTC),
				Gender:      profile.GenderOther,
				Address:     "stress lane",
				PhoneNumber: "555-0000",
			}})
		} else {
			_, err = svc.CreateDoctor(ctx, caller, profile.DoctorFields{
				Specialization:    profile.SpecializationGP,
				LicenseNumber:     fmt.Sprintf("%s-%d", licensePrefix, rand.Intn(len(callers)*2)),
				YearsOfExperience: rand.Intn(30),
				Hospital:          "stress general",
			})
		}
		switch {
		case err == nil,
			errors.Is(err, profile.ErrPatientExists),
			errors.Is(err, profile.ErrDoctorExists),
			errors.Is(err, profile.ErrRoleTaken),
			errors.Is(err, profile.ErrDuplicateLicense):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("role claimer: %w", err)
		}
		pause(5, 20)
	}
	return nil
}

// Assigner links random patient and doctor pairs. Duplicates are expected
// under contention and must be rejected.
func Assigner(ctx context.Context, svc Assignments, staff access.Caller, patientIDs, doctorIDs []string, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		_, err := svc.Create(ctx, staff, assignment.CreateInput{
			PatientID: patientIDs[rand.Intn(len(patientIDs))],
			DoctorID:  doctorIDs[rand.Intn(len(doctorIDs))],
			Notes:     "stress",
		})
		switch {
		case err == nil, errors.Is(err, assignment.ErrDuplicatePair):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("assigner: %w", err)
		}
		pause(10, 20)
	}
	return nil
}

// Toggler flips is_active on assignments visible to caller.
func Toggler(ctx context.Context, svc Assignments, caller access.Caller, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		rows, _, err := svc.List(ctx, caller, assignment.Filter{})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("toggler list: %w", err)
		}
		if len(rows) > 0 {
			target := rows[rand.Intn(len(rows))]
			active := !target.IsActive
			_, err := svc.Update(ctx, caller, target.ID, assignment.Patch{IsActive: &active})
			switch {
			case err == nil, errors.Is(err, assignment.ErrAssignmentNotFound):
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil
			default:
				return fmt.Errorf("toggler update: %w", err)
			}
		}
		pause(20, 40)
	}
	return nil
}

// Discard accepts every outbox message, occasionally failing to exercise retries.
type Discard struct{}

func (Discard) Publish(_ context.Context, _ outbox.Message) error {
	if rand.Intn(10) == 0 {
		return errors.New("simulated broker failure")
	}
	return nil
}
