package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"bank-assist/internal/domain"
)

// PolicyRepository busca informacion general del banco por topico.
type PolicyRepository interface {
	FindByTopic(ctx context.Context, topic string) (domain.Policy, error)
}

type PgPolicyRepository struct {
	pool *pgxpool.Pool
}

func NewPgPolicyRepository(pool *pgxpool.Pool) *PgPolicyRepository {
	return &PgPolicyRepository{pool: pool}
}

// FindByTopic hace match por substring case-insensitive sobre el topico.
func (r *PgPolicyRepository) FindByTopic(ctx context.Context, topic string) (domain.Policy, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.Policy{}, ErrNotFound
	}
	const query = `
		SELECT topic, content
		FROM policies
		WHERE $1 ILIKE '%' || topic || '%' OR topic ILIKE '%' || $1 || '%'
		LIMIT 1
	`
	var p domain.Policy
	err := r.pool.QueryRow(ctx, query, topic).Scan(&p.Topic, &p.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Policy{}, ErrNotFound
	}
	if err != nil {
		return domain.Policy{}, err
	}
	return p, nil
}

// SearchSimilar rankea policies por distancia coseno contra el embedding
// de la consulta. Requiere la extension pgvector y la columna embedding.
func (r *PgPolicyRepository) SearchSimilar(ctx context.Context, queryEmbedding pgvector.Vector, k int) ([]domain.Policy, error) {
	if k <= 0 {
		k = 3
	}
	const query = `
		SELECT topic, content
		FROM policies
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, queryEmbedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.Topic, &p.Content); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policies, nil
}
