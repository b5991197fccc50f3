package assignment

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"careregistry/access"
	"careregistry/apperr"
	"careregistry/db"
)

var (
	// ErrAssignmentNotFound signals a missing or invisible assignment.
	ErrAssignmentNotFound = apperr.New(apperr.ErrNotFound, "assignment: not found")
	// ErrPatientNotFound signals that patient_id does not resolve.
	ErrPatientNotFound = apperr.New(apperr.ErrNotFound, "assignment: patient not found")
	// ErrDoctorNotFound signals that doctor_id does not resolve.
	ErrDoctorNotFound = apperr.New(apperr.ErrNotFound, "assignment: doctor not found")
	// ErrDuplicatePair signals an existing assignment for the same patient and doctor.
	ErrDuplicatePair = apperr.New(apperr.ErrConflict, "assignment: this patient is already assigned to this doctor")
)

// Repository handles data access for assignments.
type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, in CreateInput) (Assignment, error)
	Get(ctx context.Context, id string) (Assignment, error)
	List(ctx context.Context, scope access.Scope, filter Filter) ([]Assignment, int, error)
	ListActive(ctx context.Context, scope access.Scope) ([]Assignment, error)
	Update(ctx context.Context, tx pgx.Tx, id string, patch Patch) (Assignment, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed assignment repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const assignmentSelect = `
	SELECT m.id, m.assigned_date, m.is_active, m.notes, m.created_at, m.updated_at,
	       p.id, p.account_id, pa.email, pa.name, p.date_of_birth, p.gender, p.address,
	       p.phone_number, p.medical_history, p.created_at, p.updated_at,
	       d.id, d.account_id, da.email, da.name, d.specialization, d.license_number,
	       d.years_of_experience, d.hospital, d.created_at, d.updated_at
	FROM assignments m
	JOIN patient_profiles p ON p.id = m.patient_id
	JOIN accounts pa ON pa.id = p.account_id
	JOIN doctor_profiles d ON d.id = m.doctor_id
	JOIN accounts da ON da.id = d.account_id`

const assignmentOrder = ` ORDER BY m.assigned_date DESC, m.created_at DESC, m.id`

// scopeWhere restricts rows to the scope; $1 is the doctor id and $2 the patient id.
const scopeWhere = `
	WHERE ($1::uuid IS NULL OR m.doctor_id = $1::uuid)
	  AND ($2::uuid IS NULL OR m.patient_id = $2::uuid)`

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, in CreateInput) (Assignment, error) {
	if !db.ValidID(in.PatientID) {
		return Assignment{}, ErrPatientNotFound
	}
	if !db.ValidID(in.DoctorID) {
		return Assignment{}, ErrDoctorNotFound
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO assignments (patient_id, doctor_id, is_active, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		in.PatientID, in.DoctorID, active, in.Notes,
	).Scan(&id)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Assignment{}, ErrDuplicatePair
		}
		if constraint, ok := db.ForeignKeyViolation(err); ok {
			if constraint == "assignments_doctor_id_fkey" {
				return Assignment{}, ErrDoctorNotFound
			}
			return Assignment{}, ErrPatientNotFound
		}
		return Assignment{}, fmt.Errorf("assignment: insert: %w", err)
	}

	return r.get(ctx, tx, id)
}

func (r *PGRepository) Get(ctx context.Context, id string) (Assignment, error) {
	return r.get(ctx, r.pool, id)
}

func (r *PGRepository) get(ctx context.Context, q querier, id string) (Assignment, error) {
	if !db.ValidID(id) {
		return Assignment{}, ErrAssignmentNotFound
	}

	a, err := scanAssignment(q.QueryRow(ctx, assignmentSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, fmt.Errorf("assignment: get: %w", err)
	}
	return a, nil
}

// List returns the page of assignments visible in scope, newest first.
func (r *PGRepository) List(ctx context.Context, scope access.Scope, filter Filter) ([]Assignment, int, error) {
	if scope.Kind == access.ScopeNone {
		return []Assignment{}, 0, nil
	}

	page := filter.Page.Normalize()
	where := scopeWhere + ` AND ($3::boolean IS NULL OR m.is_active = $3::boolean)`
	doctorID, patientID := scopeArgs(scope)
	args := []any{doctorID, patientID, filter.IsActive}

	assignments, err := r.query(ctx, assignmentSelect+where+assignmentOrder+` LIMIT $4 OFFSET $5`,
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assignments m`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("assignment: count: %w", err)
	}

	return assignments, total, nil
}

// ListActive returns every active assignment in scope, newest first.
func (r *PGRepository) ListActive(ctx context.Context, scope access.Scope) ([]Assignment, error) {
	if scope.Kind == access.ScopeNone {
		return []Assignment{}, nil
	}

	doctorID, patientID := scopeArgs(scope)
	return r.query(ctx, assignmentSelect+scopeWhere+` AND m.is_active`+assignmentOrder, doctorID, patientID)
}

func (r *PGRepository) query(ctx context.Context, sql string, args ...any) ([]Assignment, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("assignment: list: %w", err)
	}
	defer rows.Close()

	assignments := []Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("assignment: scan: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assignment: list: %w", err)
	}
	return assignments, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id string, patch Patch) (Assignment, error) {
	if !db.ValidID(id) {
		return Assignment{}, ErrAssignmentNotFound
	}

	tag, err := tx.Exec(ctx, `
		UPDATE assignments SET
			is_active  = COALESCE($2, is_active),
			notes      = COALESCE($3, notes),
			updated_at = now()
		WHERE id = $1`,
		id, patch.IsActive, patch.Notes,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("assignment: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Assignment{}, ErrAssignmentNotFound
	}

	return r.get(ctx, tx, id)
}

func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	if !db.ValidID(id) {
		return ErrAssignmentNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("assignment: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func scopeArgs(scope access.Scope) (doctorID, patientID any) {
	switch scope.Kind {
	case access.ScopeDoctor:
		return scope.ProfileID, nil
	case access.ScopePatient:
		return nil, scope.ProfileID
	default:
		return nil, nil
	}
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	p := &a.Patient
	d := &a.Doctor
	err := row.Scan(
		&a.ID, &a.AssignedDate, &a.IsActive, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
		&p.ID, &p.Holder.AccountID, &p.Holder.Email, &p.Holder.Name, &p.DateOfBirth, &p.Gender, &p.Address,
		&p.PhoneNumber, &p.MedicalHistory, &p.CreatedAt, &p.UpdatedAt,
		&d.ID, &d.Holder.AccountID, &d.Holder.Email, &d.Holder.Name, &d.Specialization, &d.LicenseNumber,
		&d.YearsOfExperience, &d.Hospital, &d.CreatedAt, &d.UpdatedAt,
	)
	return a, err
}
