package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Accounts groups the repositories that change together when an account or
// its role record changes.
type Accounts struct {
	Users UserRepository
	Roles StaffRoleRepository
}

// AccountStore runs account writes atomically.
type AccountStore interface {
	InTx(ctx context.Context, fn func(Accounts) error) error
}

type accountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore returns an AccountStore backed by Postgres transactions.
func NewAccountStore(pool *pgxpool.Pool) AccountStore {
	return &accountStore{pool: pool}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (s *accountStore) InTx(ctx context.Context, fn func(Accounts) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(Accounts{
			Users: NewUserRepository(tx),
			Roles: NewStaffRoleRepository(tx),
		})
	})
}
