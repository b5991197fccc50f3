package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"careregistry/access"
	"careregistry/apperr"
	"careregistry/db"
)

var (
	// ErrAccountNotFound signals that the target account does not exist.
	ErrAccountNotFound = apperr.New(apperr.ErrNotFound, "profile: account not found")
	// ErrPatientNotFound signals a missing or invisible patient profile.
	ErrPatientNotFound = apperr.New(apperr.ErrNotFound, "profile: patient not found")
	// ErrDoctorNotFound signals a missing or invisible doctor profile.
	ErrDoctorNotFound = apperr.New(apperr.ErrNotFound, "profile: doctor not found")
	// ErrPatientExists signals that the account already has a patient profile.
	ErrPatientExists = apperr.New(apperr.ErrConflict, "profile: patient profile already exists for this user")
	// ErrDoctorExists signals that the account already has a doctor profile.
	ErrDoctorExists = apperr.New(apperr.ErrConflict, "profile: doctor profile already exists for this user")
	// ErrDuplicateLicense signals a license number held by another doctor.
	ErrDuplicateLicense = apperr.New(apperr.ErrConflict, "profile: doctor profile with this license number already exists")
	// ErrRoleTaken signals an account that already holds the other role.
	ErrRoleTaken = apperr.New(apperr.ErrConflict, "profile: account already holds a different role")
)

// AccountRoles are the role flags of an account locked for update.
type AccountRoles struct {
	IsDoctor  bool
	IsPatient bool
}

// Repository handles data access for patient and doctor profiles.
type Repository interface {
	LockAccount(ctx context.Context, tx pgx.Tx, accountID string) (AccountRoles, error)
	SetRoles(ctx context.Context, tx pgx.Tx, accountID string, roles AccountRoles) error

	CreatePatient(ctx context.Context, tx pgx.Tx, accountID string, fields PatientFields) (Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	ListPatients(ctx context.Context, owner access.OwnerFilter, filter PatientFilter) ([]Patient, int, error)
	UpdatePatient(ctx context.Context, tx pgx.Tx, id string, patch PatientPatch) (Patient, error)
	DeletePatient(ctx context.Context, tx pgx.Tx, id string) error
	PatientIDForAccount(ctx context.Context, accountID string) (string, bool, error)

	CreateDoctor(ctx context.Context, tx pgx.Tx, accountID string, fields DoctorFields) (Doctor, error)
	GetDoctor(ctx context.Context, id string) (Doctor, error)
	ListDoctors(ctx context.Context, owner access.OwnerFilter, filter DoctorFilter) ([]Doctor, int, error)
	UpdateDoctor(ctx context.Context, tx pgx.Tx, id string, patch DoctorPatch) (Doctor, error)
	DeleteDoctor(ctx context.Context, tx pgx.Tx, id string) error
	DoctorIDForAccount(ctx context.Context, accountID string) (string, bool, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed profile repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LockAccount reads the role flags and holds the row lock until tx ends, so
// two profile creations for one account serialize on it.
func (r *PGRepository) LockAccount(ctx context.Context, tx pgx.Tx, accountID string) (AccountRoles, error) {
	if !db.ValidID(accountID) {
		return AccountRoles{}, ErrAccountNotFound
	}

	var roles AccountRoles
	err := tx.QueryRow(ctx,
		`SELECT is_doctor, is_patient FROM accounts WHERE id = $1 FOR UPDATE`,
		accountID,
	).Scan(&roles.IsDoctor, &roles.IsPatient)
	if err != nil {
		if db.IsNoRows(err) {
			return AccountRoles{}, ErrAccountNotFound
		}
		return AccountRoles{}, fmt.Errorf("profile: lock account: %w", err)
	}
	return roles, nil
}

func (r *PGRepository) SetRoles(ctx context.Context, tx pgx.Tx, accountID string, roles AccountRoles) error {
	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET is_doctor = $2, is_patient = $3, updated_at = now() WHERE id = $1`,
		accountID, roles.IsDoctor, roles.IsPatient,
	)
	if err != nil {
		return fmt.Errorf("profile: set roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PGRepository) profileIDForAccount(ctx context.Context, query, accountID string) (string, bool, error) {
	if !db.ValidID(accountID) {
		return "", false, nil
	}

	var id string
	if err := r.pool.QueryRow(ctx, query, accountID).Scan(&id); err != nil {
		if db.IsNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("profile: lookup by account: %w", err)
	}
	return id, true, nil
}

// ownerArg turns an owner filter into a nullable account id parameter.
// An unusable account id matches no rows.
func ownerArg(owner access.OwnerFilter) any {
	if owner.All {
		return nil
	}
	if !db.ValidID(owner.AccountID) {
		return uuid.Nil.String()
	}
	return owner.AccountID
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// searchArg wraps a search term for ILIKE, or returns nil for no search.
// Wildcards in term match literally.
func searchArg(term string) any {
	if term == "" {
		return nil
	}
	return "%" + likeEscaper.Replace(term) + "%"
}

func emptyAsNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func mapProfileUniqueViolation(err error) error {
	constraint, ok := db.UniqueViolation(err)
	if !ok {
		return nil
	}
	switch constraint {
	case "patient_profiles_account_id_key":
		return ErrPatientExists
	case "doctor_profiles_account_id_key":
		return ErrDoctorExists
	case "doctor_profiles_license_number_key":
		return ErrDuplicateLicense
	default:
		return apperr.New(apperr.ErrConflict, "profile: duplicate "+constraint)
	}
}
