package syncer

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"leeksaver/internal/embedding"
	"leeksaver/internal/repository"
)

// backfillBatchLimit bounds how many unembedded articles one run pulls
// before the provider's own MaxBatch further chunks them.
const backfillBatchLimit = 500

// EmbeddingsSyncer backfills NewsArticle.embedding for rows the news
// syncer inserted without one, batching by the provider's MaxBatch.
type EmbeddingsSyncer struct {
	news     *repository.NewsRepository
	provider embedding.Provider
	logger   *zap.Logger
}

func NewEmbeddingsSyncer(news *repository.NewsRepository, provider embedding.Provider, logger *zap.Logger) *EmbeddingsSyncer {
	return &EmbeddingsSyncer{news: news, provider: provider, logger: logger}
}

func (s *EmbeddingsSyncer) Name() string { return "embeddings" }

func (s *EmbeddingsSyncer) Run(ctx context.Context, _ Scope) (Report, error) {
	var report Report

	pending, err := s.news.WithoutEmbedding(ctx, backfillBatchLimit)
	if err != nil {
		return report, err
	}
	report.Fetched = len(pending)

	batchSize := s.provider.MaxBatch()
	for i := 0; i < len(pending); i += batchSize {
		if err := checkCancelled(ctx); err != nil {
			return report, err
		}
		end := i + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[i:end]

		texts := make([]string, len(batch))
		for j, article := range batch {
			texts[j] = article.Title + "\n" + article.Body
		}

		vectors, embedErr := s.provider.Embed(ctx, texts)
		if embedErr != nil {
			s.logger.Warn("embedding batch failed, will retry next run", zap.Error(embedErr), zap.Int("batch_size", len(batch)))
			report.Errors += len(batch)
			continue
		}
		for j, article := range batch {
			if j >= len(vectors) {
				break
			}
			encoded, marshalErr := json.Marshal(vectors[j])
			if marshalErr != nil {
				report.Errors++
				continue
			}
			if err := s.news.SetEmbedding(ctx, article.ID, encoded); err != nil {
				report.Errors++
				continue
			}
			report.Accepted++
			report.Written++
		}
	}
	return report, nil
}
