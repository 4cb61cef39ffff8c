package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bank-assist/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// AccountRepository expone datos de cuenta de solo lectura.
// Invariante: ninguna operacion muta estado.
type AccountRepository interface {
	GetBalance(ctx context.Context, userID string) (domain.Balance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

type PgAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgAccountRepository(pool *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{pool: pool}
}

func (r *PgAccountRepository) GetBalance(ctx context.Context, userID string) (domain.Balance, error) {
	const query = `
		SELECT user_id, balance, account_type
		FROM accounts
		WHERE user_id = $1
	`
	var b domain.Balance
	err := r.pool.QueryRow(ctx, query, userID).Scan(&b.UserID, &b.Amount, &b.AccountType)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Balance{}, ErrNotFound
	}
	if err != nil {
		return domain.Balance{}, err
	}
	return b, nil
}

func (r *PgAccountRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
		SELECT user_id, date, merchant, amount
		FROM transactions
		WHERE user_id = $1
		ORDER BY date DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.UserID, &t.Date, &t.Merchant, &t.Amount); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return txns, nil
}
