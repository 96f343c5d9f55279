package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-access/internal/domain"
)

// StaffRoleRepository handles persistence for staff role records.
type StaffRoleRepository interface {
	Upsert(ctx context.Context, record *domain.StaffRoleRecord) error
	Delete(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*domain.StaffRoleRecord, error)
	GetRoleByUserID(ctx context.Context, userID string) (domain.StaffRole, error)
}

type staffRoleRepository struct {
	db DBTX
}

// NewStaffRoleRepository instantiates the repository.
func NewStaffRoleRepository(db DBTX) StaffRoleRepository {
	return &staffRoleRepository{db: db}
}

func (r *staffRoleRepository) Upsert(ctx context.Context, record *domain.StaffRoleRecord) error {
	const query = `
        INSERT INTO staff_roles (user_id, role)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role, updated_at=NOW()
        RETURNING created_at, updated_at`

	return r.db.QueryRow(ctx, query, record.UserID, record.Role).Scan(&record.CreatedAt, &record.UpdatedAt)
}

func (r *staffRoleRepository) Delete(ctx context.Context, userID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM staff_roles WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRoleRepository) Get(ctx context.Context, userID string) (*domain.StaffRoleRecord, error) {
	const query = `
        SELECT user_id, role, created_at, updated_at
        FROM staff_roles WHERE user_id=$1`

	var record domain.StaffRoleRecord
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.Role,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetRoleByUserID returns pgx.ErrNoRows when the user has no role record.
func (r *staffRoleRepository) GetRoleByUserID(ctx context.Context, userID string) (domain.StaffRole, error) {
	var role domain.StaffRole
	if err := r.db.QueryRow(ctx, `SELECT role FROM staff_roles WHERE user_id=$1`, userID).Scan(&role); err != nil {
		return "", err
	}
	return role, nil
}
