package profile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"careregistry/access"
	"careregistry/db"
)

const doctorSelect = `
	SELECT d.id, d.account_id, a.email, a.name, d.specialization, d.license_number,
	       d.years_of_experience, d.hospital, d.created_at, d.updated_at
	FROM doctor_profiles d
	JOIN accounts a ON a.id = d.account_id`

func (r *PGRepository) CreateDoctor(ctx context.Context, tx pgx.Tx, accountID string, fields DoctorFields) (Doctor, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO doctor_profiles (account_id, specialization, license_number, years_of_experience, hospital)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		accountID, fields.Specialization, fields.LicenseNumber, fields.YearsOfExperience, fields.Hospital,
	).Scan(&id)
	if err != nil {
		if mapped := mapProfileUniqueViolation(err); mapped != nil {
			return Doctor{}, mapped
		}
		if _, ok := db.ForeignKeyViolation(err); ok {
			return Doctor{}, ErrAccountNotFound
		}
		return Doctor{}, fmt.Errorf("profile: insert doctor: %w", err)
	}

	return r.getDoctor(ctx, tx, id)
}

func (r *PGRepository) GetDoctor(ctx context.Context, id string) (Doctor, error) {
	return r.getDoctor(ctx, r.pool, id)
}

func (r *PGRepository) getDoctor(ctx context.Context, q querier, id string) (Doctor, error) {
	if !db.ValidID(id) {
		return Doctor{}, ErrDoctorNotFound
	}

	d, err := scanDoctor(q.QueryRow(ctx, doctorSelect+` WHERE d.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Doctor{}, ErrDoctorNotFound
		}
		return Doctor{}, fmt.Errorf("profile: get doctor: %w", err)
	}
	return d, nil
}

func (r *PGRepository) ListDoctors(ctx context.Context, owner access.OwnerFilter, filter DoctorFilter) ([]Doctor, int, error) {
	page := filter.Page.Normalize()
	where := `
	WHERE ($1::uuid IS NULL OR d.account_id = $1::uuid)
	  AND ($2::text IS NULL OR d.specialization = $2::text)
	  AND ($3::text IS NULL OR a.name ILIKE $3 ESCAPE '\' OR a.email ILIKE $3 ESCAPE '\' OR d.license_number ILIKE $3 ESCAPE '\' OR d.hospital ILIKE $3 ESCAPE '\')`
	args := []any{ownerArg(owner), emptyAsNil(filter.Specialization), searchArg(filter.Search)}

	rows, err := r.pool.Query(ctx,
		doctorSelect+where+` ORDER BY d.created_at DESC, d.id LIMIT $4 OFFSET $5`,
		append(args, page.Size, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("profile: list doctors: %w", err)
	}
	defer rows.Close()

	doctors := []Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("profile: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("profile: list doctors: %w", err)
	}

	var total int
	countSQL := `SELECT COUNT(*) FROM doctor_profiles d JOIN accounts a ON a.id = d.account_id` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("profile: count doctors: %w", err)
	}

	return doctors, total, nil
}

func (r *PGRepository) UpdateDoctor(ctx context.Context, tx pgx.Tx, id string, patch DoctorPatch) (Doctor, error) {
	if !db.ValidID(id) {
		return Doctor{}, ErrDoctorNotFound
	}

	tag, err := tx.Exec(ctx, `
		UPDATE doctor_profiles SET
			specialization      = COALESCE($2, specialization),
			license_number      = COALESCE($3, license_number),
			years_of_experience = COALESCE($4, years_of_experience),
			hospital            = COALESCE($5, hospital),
			updated_at          = now()
		WHERE id = $1`,
		id, patch.Specialization, patch.LicenseNumber, patch.YearsOfExperience, patch.Hospital,
	)
	if err != nil {
		if mapped := mapProfileUniqueViolation(err); mapped != nil {
			return Doctor{}, mapped
		}
		return Doctor{}, fmt.Errorf("profile: update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Doctor{}, ErrDoctorNotFound
	}

	return r.getDoctor(ctx, tx, id)
}

func (r *PGRepository) DeleteDoctor(ctx context.Context, tx pgx.Tx, id string) error {
	if !db.ValidID(id) {
		return ErrDoctorNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM doctor_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("profile: delete doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PGRepository) DoctorIDForAccount(ctx context.Context, accountID string) (string, bool, error) {
	return r.profileIDForAccount(ctx, `SELECT id FROM doctor_profiles WHERE account_id = $1`, accountID)
}

func scanDoctor(row pgx.Row) (Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Holder.AccountID,
		&d.Holder.Email,
		&d.Holder.Name,
		&d.Specialization,
		&d.LicenseNumber,
		&d.YearsOfExperience,
		&d.Hospital,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}
