// Package rank orders relief templates by urgency using a single
// batched model call. Ranking is advisory: when the model output cannot
// be used, every candidate falls back to rank -1 rather than failing
// the caller.
package rank

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/reliefwatch/reliefwatch/internal/llm"
)

// Unranked is the rank assigned when no usable ranking exists.
const Unranked = -1

// Candidate is one relief template offered for ranking.
type Candidate struct {
	TemplateID    int64
	ReliefTitle   string
	Description   string
	HeadlineTitle string
}

// Ranker ranks candidates through a text generation provider.
type Ranker struct {
	provider  llm.Provider
	maxTokens int
}

// New creates a Ranker.
func New(provider llm.Provider, maxTokens int) *Ranker {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &Ranker{provider: provider, maxTokens: maxTokens}
}

var bracketList = regexp.MustCompile(`\[.*?\]`)

// Rank returns a rank per template ID, 1 being the most urgent. On any
// model or parse failure every candidate maps to Unranked and the error
// is only logged.
func (r *Ranker) Rank(ctx context.Context, candidates []Candidate) map[int64]int {
	ranks := make(map[int64]int, len(candidates))
	for _, c := range candidates {
		ranks[c.TemplateID] = Unranked
	}
	if len(candidates) == 0 {
		return ranks
	}
	if len(candidates) == 1 {
		ranks[candidates[0].TemplateID] = 1
		return ranks
	}
	if r.provider == nil || !r.provider.IsConfigured() {
		log.Print("rank: provider not configured, using fallback ranks")
		return ranks
	}

	resp, err := r.provider.Generate(ctx, rankPrompt(candidates), r.maxTokens)
	if err != nil {
		log.Printf("rank: model call failed, using fallback ranks: %v", err)
		return ranks
	}

	parsed, err := parseRanks(resp, len(candidates))
	if err != nil {
		log.Printf("rank: unusable model output, using fallback ranks: %v", err)
		return ranks
	}

	for i, c := range candidates {
		ranks[c.TemplateID] = parsed[i]
	}
	return ranks
}

func rankPrompt(candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Rank the following %d disaster relief efforts by urgency. Consider the severity of the incident and how time-critical the response is.

`, len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (incident: %s) - %s\n", i+1, c.ReliefTitle, c.HeadlineTitle, c.Description)
	}
	fmt.Fprintf(&b, `
Respond with only a bracketed list of %d integers, one rank per effort in the order listed above, where 1 is the most urgent. Example: [2, 1, 3]`, len(candidates))
	return b.String()
}

// parseRanks extracts the first bracketed integer list from the
// response and checks that it is a permutation of 1..n.
func parseRanks(resp string, n int) ([]int, error) {
	match := bracketList.FindString(llm.StripFences(resp))
	if match == "" {
		return nil, fmt.Errorf("no bracketed list in response")
	}

	parts := strings.Split(strings.Trim(match, "[]"), ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d ranks, got %d", n, len(parts))
	}

	ranks := make([]int, n)
	seen := make(map[int]bool, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("rank %d is not an integer: %q", i+1, p)
		}
		if v < 1 || v > n {
			return nil, fmt.Errorf("rank %d out of range: %d", i+1, v)
		}
		if seen[v] {
			return nil, fmt.Errorf("duplicate rank %d", v)
		}
		seen[v] = true
		ranks[i] = v
	}
	return ranks, nil
}
