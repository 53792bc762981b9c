package generate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Template is the validated relief-effort template extracted from the
// repaired model output.
type Template struct {
	ReliefTitle    string
	Description    string
	MonetaryGoal   float64
	DeploymentDate string
	Inkind         []InkindItem
}

// InkindItem is one validated in-kind requirement line.
type InkindItem struct {
	Item     string
	ItemDesc string
	Quantity int
}

// ValidateTemplate coerces the parsed model JSON into a Template. Field
// names follow the repair schema; missing or ill-typed required fields
// come back as errors, not panics, so one bad generation stays contained.
func ValidateTemplate(parsed map[string]any) (*Template, error) {
	if parsed == nil {
		return nil, fmt.Errorf("no JSON object in response")
	}

	title, err := stringField(parsed, "relief_title")
	if err != nil {
		return nil, err
	}
	description, err := stringField(parsed, "description")
	if err != nil {
		return nil, err
	}

	goal, err := numberField(parsed, "monetary_goal")
	if err != nil {
		return nil, err
	}
	if goal < 0 {
		return nil, fmt.Errorf("monetary_goal is negative: %v", goal)
	}

	rawItems, ok := parsed["inkind_donation"].([]any)
	if !ok {
		return nil, fmt.Errorf("missing or invalid field %q", "inkind_donation")
	}

	var items []InkindItem
	for i, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item, err := parseInkind(obj)
		if err != nil {
			return nil, fmt.Errorf("inkind_donation[%d]: %w", i, err)
		}
		items = append(items, *item)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("no valid inkind_donation entries")
	}

	return &Template{
		ReliefTitle:    title,
		Description:    description,
		MonetaryGoal:   goal,
		DeploymentDate: normalizeDate(asString(parsed["deployment_date"])),
		Inkind:         items,
	}, nil
}

func parseInkind(obj map[string]any) (*InkindItem, error) {
	item, err := stringField(obj, "item")
	if err != nil {
		return nil, err
	}

	qty, err := numberField(obj, "quantity")
	if err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be positive, got %v", qty)
	}

	return &InkindItem{
		Item:     item,
		ItemDesc: asString(obj["item_desc"]),
		Quantity: int(qty),
	}, nil
}

func stringField(m map[string]any, key string) (string, error) {
	s := strings.TrimSpace(asString(m[key]))
	if s == "" {
		return "", fmt.Errorf("missing or invalid field %q", key)
	}
	return s, nil
}

func numberField(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing or invalid field %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		// Models emit "500000", "500,000", or "PHP 500000".
		cleaned := strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, n)
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %q", key, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("missing or invalid field %q", key)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// normalizeDate renders parsable dates as YYYY-MM-DD and passes anything
// else through untouched; deployment dates are advisory.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return s
	}
	if ts, err := dateparse.ParseAny(s); err == nil {
		return ts.Format("2006-01-02")
	}
	return s
}
