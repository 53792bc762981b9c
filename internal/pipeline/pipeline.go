// Package pipeline wires configuration, storage, the classifier, and
// the model provider into the two periodic jobs: headline ingestion and
// relief template generation.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/reliefwatch/reliefwatch/internal/classifier"
	"github.com/reliefwatch/reliefwatch/internal/config"
	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/generate"
	"github.com/reliefwatch/reliefwatch/internal/ingest"
	"github.com/reliefwatch/reliefwatch/internal/llm"
	"github.com/reliefwatch/reliefwatch/internal/rank"
	"github.com/reliefwatch/reliefwatch/internal/scrape"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Pipeline owns the shared components behind the periodic jobs and the
// HTTP server.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	provider llm.Provider
	ingestor *ingest.Ingestor
	ranker   *rank.Ranker
}

// New creates a Pipeline from configuration. The classifier model is
// embedded, so construction fails only on a corrupt build.
func New(cfg *config.Config, db *database.DB) (*Pipeline, error) {
	clf, err := classifier.New(cfg.Classifier.Threshold)
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}

	gen := cfg.Generation
	provider := llm.CreateProvider(llm.Options{
		Provider:     gen.Provider,
		GeminiModel:  gen.GeminiModel,
		GeminiKeyEnv: gen.GeminiKeyEnv,
		OllamaModel:  gen.OllamaModel,
		OllamaURL:    gen.OllamaURL,
		OpenAIModel:  gen.OpenAIModel,
		OpenAIKeyEnv: gen.OpenAIKeyEnv,
	})

	sources := []ingest.Source{
		&ingest.ScrapeSource{Scraper: scrape.New(cfg.Sources.IndexURL, cfg.Sources.Timezone, cfg.FetchTimeout())},
	}
	if len(cfg.Sources.Feeds) > 0 {
		urls := make([]string, len(cfg.Sources.Feeds))
		for i, f := range cfg.Sources.Feeds {
			urls[i] = f.URL
		}
		sources = append(sources, ingest.NewFeedSource(urls))
	}

	return &Pipeline{
		cfg:      cfg,
		db:       db,
		provider: provider,
		ingestor: ingest.New(db, clf, sources...),
		ranker:   rank.New(provider, gen.MaxTokens),
	}, nil
}

// Ingestor returns the configured ingestor, shared with the server.
func (p *Pipeline) Ingestor() *ingest.Ingestor {
	return p.ingestor
}

// Ranker returns the configured urgency ranker, shared with the server.
func (p *Pipeline) Ranker() *rank.Ranker {
	return p.ranker
}

// RunIngest scrapes the configured sources and stores new disaster
// headlines.
func (p *Pipeline) RunIngest(ctx context.Context) StepResult {
	log.Println("Running ingestion...")
	result, err := p.ingestor.Run(ctx)
	if err != nil {
		return StepResult{Name: "Ingest", Err: err}
	}
	return StepResult{
		Name: "Ingest",
		Summary: fmt.Sprintf("Fetched %d articles: %d new, %d duplicate, %d non-disaster, %d failed",
			result.Fetched, result.New, result.Duplicates, result.NonDisaster, result.Failed),
	}
}

// RunGenerate creates relief templates for one batch of untemplated
// headlines.
func (p *Pipeline) RunGenerate(ctx context.Context) StepResult {
	log.Println("Running template generation...")
	if p.provider == nil {
		return StepResult{Name: "Generate", Err: fmt.Errorf("no llm provider available")}
	}
	gen := generate.New(p.db, p.provider, p.cfg.Generation.BatchSize, p.cfg.Generation.MaxTokens, p.cfg.ItemDelay())
	result, err := gen.Run(ctx)
	if err != nil {
		return StepResult{Name: "Generate", Err: err}
	}
	return StepResult{
		Name: "Generate",
		Summary: fmt.Sprintf("Processed %d headlines: %d templates generated, %d failed",
			result.Processed, result.Generated, result.Failed),
	}
}
