package profile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"careregistry/access"
	"careregistry/db"
)

const patientSelect = `
	SELECT p.id, p.account_id, a.email, a.name, p.date_of_birth, p.gender, p.address,
	       p.phone_number, p.medical_history, p.created_at, p.updated_at
	FROM patient_profiles p
	JOIN accounts a ON a.id = p.account_id`

func (r *PGRepository) CreatePatient(ctx context.Context, tx pgx.Tx, accountID string, fields PatientFields) (Patient, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO patient_profiles (account_id, date_of_birth, gender, address, phone_number, medical_history)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		accountID, fields.DateOfBirth, fields.Gender, fields.Address, fields.PhoneNumber, fields.MedicalHistory,
	).Scan(&id)
	if err != nil {
		if mapped := mapProfileUniqueViolation(err); mapped != nil {
			return Patient{}, mapped
		}
		if _, ok := db.ForeignKeyViolation(err); ok {
			return Patient{}, ErrAccountNotFound
		}
		return Patient{}, fmt.Errorf("profile: insert patient: %w", err)
	}

	return r.getPatient(ctx, tx, id)
}

func (r *PGRepository) GetPatient(ctx context.Context, id string) (Patient, error) {
	return r.getPatient(ctx, r.pool, id)
}

func (r *PGRepository) getPatient(ctx context.Context, q querier, id string) (Patient, error) {
	if !db.ValidID(id) {
		return Patient{}, ErrPatientNotFound
	}

	p, err := scanPatient(q.QueryRow(ctx, patientSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Patient{}, ErrPatientNotFound
		}
		return Patient{}, fmt.Errorf("profile: get patient: %w", err)
	}
	return p, nil
}

func (r *PGRepository) ListPatients(ctx context.Context, owner access.OwnerFilter, filter PatientFilter) ([]Patient, int, error) {
	page := filter.Page.Normalize()
	where := `
	WHERE ($1::uuid IS NULL OR p.account_id = $1::uuid)
	  AND ($2::text IS NULL OR p.gender = $2::text)
	  AND ($3::text IS NULL OR a.name ILIKE $3 ESCAPE '\' OR a.email ILIKE $3 ESCAPE '\' OR p.phone_number ILIKE $3 ESCAPE '\')`
	args := []any{ownerArg(owner), emptyAsNil(filter.Gender), searchArg(filter.Search)}

	rows, err := r.pool.Query(ctx,
		patientSelect+where+` ORDER BY p.created_at DESC, p.id LIMIT $4 OFFSET $5`,
		append(args, page.Size, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("profile: list patients: %w", err)
	}
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("profile: scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("profile: list patients: %w", err)
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM patient_profiles p JOIN accounts a ON a.id = p.account_id` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("profile: count patients: %w", err)
	}

	return patients, total, nil
}

func (r *PGRepository) UpdatePatient(ctx context.Context, tx pgx.Tx, id string, patch PatientPatch) (Patient, error) {
	if !db.ValidID(id) {
		return Patient{}, ErrPatientNotFound
	}

	tag, err := tx.Exec(ctx, `
		UPDATE patient_profiles SET
			date_of_birth   = COALESCE($2, date_of_birth),
			gender          = COALESCE($3, gender),
			address         = COALESCE($4, address),
			phone_number    = COALESCE($5, phone_number),
			medical_history = COALESCE($6, medical_history),
			updated_at      = now()
		WHERE id = $1`,
		id, patch.DateOfBirth, patch.Gender, patch.Address, patch.PhoneNumber, patch.MedicalHistory,
	)
	if err != nil {
		return Patient{}, fmt.Errorf("profile: update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Patient{}, ErrPatientNotFound
	}

	return r.getPatient(ctx, tx, id)
}

func (r *PGRepository) DeletePatient(ctx context.Context, tx pgx.Tx, id string) error {
	if !db.ValidID(id) {
		return ErrPatientNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM patient_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("profile: delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PGRepository) PatientIDForAccount(ctx context.Context, accountID string) (string, bool, error) {
	return r.profileIDForAccount(ctx, `SELECT id FROM patient_profiles WHERE account_id = $1`, accountID)
}

func scanPatient(row pgx.Row) (Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Holder.AccountID,
		&p.Holder.Email,
		&p.Holder.Name,
		&p.DateOfBirth,
		&p.Gender,
		&p.Address,
		&p.PhoneNumber,
		&p.MedicalHistory,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
