// Package generate turns persisted disaster headlines into relief effort
// templates via a two-pass model exchange: a free-form draft pass, then a
// repair pass that coerces the draft into a fixed JSON schema.
package generate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reliefwatch/reliefwatch/internal/database"
	"github.com/reliefwatch/reliefwatch/internal/llm"
)

// State tracks how far a headline made it through the pipeline.
type State int

const (
	StateFailed State = iota
	StateDrafted
	StateNormalized
	StatePersisted
)

// Outcome is the per-headline generation result. Failures carry the
// error and the last state reached; a persisted outcome carries the
// stored template's ID.
type Outcome struct {
	HeadlineID int64
	State      State
	TemplateID int64
	Template   *Template
	Err        error
}

// Result summarizes one generation run.
type Result struct {
	Processed int
	Generated int
	Failed    int
}

// Generator drives template generation for untemplated headlines.
type Generator struct {
	db        *database.DB
	provider  llm.Provider
	batchSize int
	maxTokens int
	delay     time.Duration
}

// New creates a Generator. delay is the pause between consecutive
// headlines; pass 0 to disable.
func New(db *database.DB, provider llm.Provider, batchSize, maxTokens int, delay time.Duration) *Generator {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Generator{
		db:        db,
		provider:  provider,
		batchSize: batchSize,
		maxTokens: maxTokens,
		delay:     delay,
	}
}

// Run generates templates for up to one batch of untemplated headlines.
// A failure on one headline is logged and does not stop the rest; the
// headline stays untemplated and is retried on a later run.
func (g *Generator) Run(ctx context.Context) (*Result, error) {
	if !g.provider.IsConfigured() {
		return nil, fmt.Errorf("llm provider not configured")
	}

	headlines, err := g.db.GetUntemplatedHeadlines(1, g.batchSize)
	if err != nil {
		return nil, fmt.Errorf("loading untemplated headlines: %w", err)
	}

	result := &Result{}
	for i := range headlines {
		h := &headlines[i]
		result.Processed++

		outcome := g.Process(ctx, h)
		if outcome.State != StatePersisted {
			result.Failed++
			log.Printf("generation failed for headline %d: %v", h.ID, outcome.Err)
			continue
		}

		result.Generated++
		log.Printf("generated relief template %d for headline %d (%s)", outcome.TemplateID, h.ID, h.Title)

		// Throttle between successful generations only.
		if i < len(headlines)-1 {
			if err := g.pause(ctx); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// Process runs the draft/repair/validate/persist sequence for one
// headline.
func (g *Generator) Process(ctx context.Context, h *database.Headline) Outcome {
	out := Outcome{HeadlineID: h.ID}

	// A headline already covered by a template never gets a second one.
	exists, err := g.db.HasTemplateForHeadline(h.ID)
	if err != nil {
		out.Err = fmt.Errorf("checking existing template: %w", err)
		return out
	}
	if exists {
		out.Err = fmt.Errorf("headline %d already has a template", h.ID)
		return out
	}

	draft, err := g.provider.Generate(ctx, draftPrompt(h), g.maxTokens)
	if err != nil {
		out.Err = fmt.Errorf("draft pass: %w", err)
		return out
	}
	out.State = StateDrafted

	repaired, err := g.provider.Generate(ctx, repairPrompt(draft), g.maxTokens)
	if err != nil {
		out.Err = fmt.Errorf("repair pass: %w", err)
		return out
	}

	tmpl, err := ValidateTemplate(llm.ParseJSONResponse(repaired))
	if err != nil {
		out.Err = fmt.Errorf("validating repaired output: %w", err)
		return out
	}
	out.State = StateNormalized
	out.Template = tmpl

	var deployment *string
	if tmpl.DeploymentDate != "" {
		deployment = &tmpl.DeploymentDate
	}
	inkind := make([]database.InkindItem, len(tmpl.Inkind))
	for i, it := range tmpl.Inkind {
		inkind[i] = database.InkindItem{Item: it.Item, ItemDesc: it.ItemDesc, Quantity: it.Quantity}
	}

	id, err := g.db.InsertReliefTemplate(h.ID, tmpl.ReliefTitle, tmpl.Description, tmpl.MonetaryGoal, deployment, inkind)
	if err != nil {
		out.Err = fmt.Errorf("persisting template: %w", err)
		return out
	}
	out.State = StatePersisted
	out.TemplateID = id
	return out
}

func (g *Generator) pause(ctx context.Context) error {
	if g.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.delay):
		return nil
	}
}
