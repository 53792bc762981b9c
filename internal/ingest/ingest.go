// Package ingest pulls articles from configured sources, classifies
// their headlines, and persists the disaster-relevant ones. Links are
// the dedup key: an already-stored link is skipped regardless of title.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reliefwatch/reliefwatch/internal/classifier"
	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/scrape"
)

// Source produces candidate articles for ingestion.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]scrape.Article, error)
}

// Result summarizes one ingestion run.
type Result struct {
	Fetched     int
	New         int
	Duplicates  int
	NonDisaster int
	Failed      int
}

// Ingestor classifies and stores articles from its sources.
type Ingestor struct {
	db         *database.DB
	classifier *classifier.Classifier
	sources    []Source
}

// New creates an Ingestor over the given sources.
func New(db *database.DB, c *classifier.Classifier, sources ...Source) *Ingestor {
	return &Ingestor{db: db, classifier: c, sources: sources}
}

// Run fetches every source and ingests each article. Source failures
// are logged and do not abort the run.
func (in *Ingestor) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	for _, src := range in.sources {
		articles, err := src.Fetch(ctx)
		if err != nil {
			log.Printf("source %s failed: %v", src.Name(), err)
			result.Failed++
			continue
		}
		for i := range articles {
			result.Fetched++
			in.ingestOne(ctx, &articles[i], result)
		}
	}
	log.Printf("ingest: %d fetched, %d new, %d duplicate, %d non-disaster, %d failed",
		result.Fetched, result.New, result.Duplicates, result.NonDisaster, result.Failed)
	return result, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, art *scrape.Article, result *Result) {
	id, pred, err := in.Ingest(ctx, art)
	switch {
	case err != nil:
		log.Printf("ingesting %s: %v", art.Link, err)
		result.Failed++
	case pred.Category == classifier.NonDisaster:
		result.NonDisaster++
	case id == 0:
		result.Duplicates++
	default:
		result.New++
		log.Printf("stored headline %d [%s %.2f] %s", id, pred.Category, pred.Score, art.Title)
	}
}

// Ingest classifies one article and stores it if it is a new disaster
// headline. It returns 0 for duplicates and for non-disaster headlines.
func (in *Ingestor) Ingest(ctx context.Context, art *scrape.Article) (int64, classifier.Prediction, error) {
	pred := in.classifier.Classify(art.Title)
	if pred.Category == classifier.NonDisaster {
		return 0, pred, nil
	}

	existing, err := in.db.GetHeadlineByLink(art.Link)
	if err != nil {
		return 0, pred, fmt.Errorf("checking link: %w", err)
	}
	if existing != nil {
		return 0, pred, nil
	}

	posted := art.PostedDatetime.Format(time.RFC3339)
	var body *string
	if art.Body != "" {
		body = &art.Body
	}
	id, err := in.db.InsertHeadline(art.Title, art.Link, pred.Category, &posted, body)
	if err != nil {
		return 0, pred, fmt.Errorf("storing headline: %w", err)
	}
	return id, pred, nil
}
