package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/crm-access/internal/domain"
)

// LeadFilter captures listing parameters. AssignedTo is the ownership
// predicate produced by the access gate; nil means unrestricted.
type LeadFilter struct {
	AssignedTo *string
	Statuses   []domain.LeadStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// Page size bounds for lead listings.
const (
	DefaultLeadPageSize = 20
	MaxLeadPageSize     = 100
)

// LeadPageSize bounds a requested page size; non-positive sizes get the default.
func LeadPageSize(requested int) int {
	switch {
	case requested <= 0:
		return DefaultLeadPageSize
	case requested > MaxLeadPageSize:
		return MaxLeadPageSize
	}
	return requested
}

// LeadRepository encapsulates lead persistence.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
}

type leadRepository struct {
	db DBTX
}

// NewLeadRepository instantiates repository.
func NewLeadRepository(db DBTX) LeadRepository {
	return &leadRepository{db: db}
}

const leadColumns = `id, organization_id, name, email, phone, company, source, status, notes, assigned_to, created_at, updated_at`

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	const query = `
        INSERT INTO leads (organization_id, name, email, phone, company, source, status, notes, assigned_to)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		lead.OrganizationID,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Company,
		lead.Source,
		lead.Status,
		lead.Notes,
		nullableID(lead.AssignedTo),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	const query = `
        UPDATE leads SET name=$1, email=$2, phone=$3, company=$4, source=$5, status=$6, notes=$7,
            assigned_to=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		lead.Name,
		lead.Email,
		lead.Phone,
		lead.Company,
		lead.Source,
		lead.Status,
		lead.Notes,
		nullableID(lead.AssignedTo),
		lead.ID,
	).Scan(&lead.UpdatedAt)
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	rows, err := r.db.Query(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &leads[0], nil
}

func (r *leadRepository) List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	query, args := buildLeadListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLeads(rows)
}

func buildLeadListQuery(filter LeadFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(email) LIKE %s OR LOWER(company) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := LeadPageSize(filter.Limit)
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		leadColumns, strings.Join(clauses, " AND "), limit, offset)
	return query, args
}

func scanLeads(rows pgx.Rows) ([]domain.Lead, error) {
	var result []domain.Lead
	for rows.Next() {
		var (
			lead       domain.Lead
			assignedTo *string
		)
		if err := rows.Scan(
			&lead.ID,
			&lead.OrganizationID,
			&lead.Name,
			&lead.Email,
			&lead.Phone,
			&lead.Company,
			&lead.Source,
			&lead.Status,
			&lead.Notes,
			&assignedTo,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if assignedTo != nil {
			lead.AssignedTo = *assignedTo
		}
		result = append(result, lead)
	}
	return result, rows.Err()
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
