package account

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"careregistry/apperr"
	"careregistry/db"
)

var (
	// ErrAccountNotFound signals that the account does not exist.
	ErrAccountNotFound = apperr.New(apperr.ErrNotFound, "account: not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = apperr.New(apperr.ErrValidation, "account: user with this email address already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateAccount(ctx context.Context, tx pgx.Tx, params CreateAccountParams) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByID(ctx context.Context, accountID string) (Account, error)
	Delete(ctx context.Context, tx pgx.Tx, accountID string) error
}

// CreateAccountParams contains write parameters for creating accounts.
type CreateAccountParams struct {
	Email        string
	Name         string
	PasswordHash string
	IsStaff      bool
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, email, name, password_hash, is_doctor, is_patient, is_staff, is_active, created_at, updated_at`

// CreateAccount inserts a new account with no role flags set.
func (r *PGRepository) CreateAccount(ctx context.Context, tx pgx.Tx, params CreateAccountParams) (Account, error) {
	insertSQL := `
		INSERT INTO accounts (email, name, password_hash, is_staff)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns

	acct, err := scanAccount(tx.QueryRow(ctx, insertSQL, params.Email, params.Name, params.PasswordHash, params.IsStaff))
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, fmt.Errorf("account: create: %w", err)
	}

	return acct, nil
}

// GetByEmail retrieves an account by email, ignoring case.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	selectSQL := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`

	acct, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if db.IsNoRows(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("account: get by email: %w", err)
	}

	return acct, nil
}

// GetByID retrieves an account by ID.
func (r *PGRepository) GetByID(ctx context.Context, accountID string) (Account, error) {
	if !db.ValidID(accountID) {
		return Account{}, ErrAccountNotFound
	}

	selectSQL := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acct, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, accountID))
	if err != nil {
		if db.IsNoRows(err) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("account: get by id: %w", err)
	}

	return acct, nil
}

// Delete removes the account; profiles and their assignments go with it
// through ON DELETE CASCADE.
func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, accountID string) error {
	if !db.ValidID(accountID) {
		return ErrAccountNotFound
	}

	tag, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("account: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.Name,
		&acct.PasswordHash,
		&acct.IsDoctor,
		&acct.IsPatient,
		&acct.IsStaff,
		&acct.IsActive,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}
