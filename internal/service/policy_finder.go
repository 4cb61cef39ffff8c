package service

import (
	"context"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"bank-assist/internal/domain"
	"bank-assist/internal/llm"
	"bank-assist/internal/repository"
)

// PolicyFinder resuelve una consulta de policy por topico.
type PolicyFinder interface {
	Find(ctx context.Context, topic string) (domain.Policy, error)
}

// BasicPolicyFinder delega directo al repositorio (match por keyword).
type BasicPolicyFinder struct {
	repo repository.PolicyRepository
}

func NewBasicPolicyFinder(repo repository.PolicyRepository) *BasicPolicyFinder {
	return &BasicPolicyFinder{repo: repo}
}

func (f *BasicPolicyFinder) Find(ctx context.Context, topic string) (domain.Policy, error) {
	return f.repo.FindByTopic(ctx, topic)
}

// policySearcher es lo que el finder semantico necesita del repo Pg.
type policySearcher interface {
	FindByTopic(ctx context.Context, topic string) (domain.Policy, error)
	SearchSimilar(ctx context.Context, queryEmbedding pgvector.Vector, k int) ([]domain.Policy, error)
}

// SemanticPolicyFinder embebe el topico y rankea por similitud vectorial;
// si el embedding falla cae al match por keyword.
type SemanticPolicyFinder struct {
	embedder llm.EmbeddingClient
	repo     policySearcher
	logger   *zap.Logger
}

func NewSemanticPolicyFinder(embedder llm.EmbeddingClient, repo policySearcher, logger *zap.Logger) *SemanticPolicyFinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticPolicyFinder{embedder: embedder, repo: repo, logger: logger}
}

func (f *SemanticPolicyFinder) Find(ctx context.Context, topic string) (domain.Policy, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.Policy{}, repository.ErrNotFound
	}

	if f.embedder != nil {
		embed, err := f.embedder.CreateEmbedding(ctx, topic)
		if err != nil {
			f.logger.Warn("policy embedding failed, falling back to keyword match", zap.Error(err))
		} else {
			policies, err := f.repo.SearchSimilar(ctx, pgvector.NewVector(embed), 1)
			if err != nil {
				return domain.Policy{}, fmt.Errorf("search policies: %w", err)
			}
			if len(policies) > 0 {
				return policies[0], nil
			}
		}
	}

	return f.repo.FindByTopic(ctx, topic)
}
