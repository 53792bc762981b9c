package generate

import (
	"fmt"

	"github.com/reliefwatch/reliefwatch/internal/database"
)

const jsonTemplate = `{
  "relief_title": "string",
  "description": "string",
  "monetary_goal": 0,
  "inkind_donation": [
    {
      "item": "string",
      "item_desc": "string",
      "quantity": 0
    }
  ],
  "deployment_date": "YYYY-MM-DD"
}`

func draftPrompt(h *database.Headline) string {
	return fmt.Sprintf(`You are a relief operations planner for a humanitarian organization in the Philippines.

A news article reports the following %s incident.

Headline: %s
Date posted: %s
Article:
%s

Plan a relief effort responding to this incident. Propose a short title for the relief effort, a description of what the effort will do and who it helps, a realistic monetary goal in Philippine pesos, a list of in-kind donations to collect (each with an item name, a short description, and a target quantity), and a deployment date shortly after the article date. Do not leave any field empty.`,
		h.DisasterType, h.Title, deref(h.PostedDatetime), deref(h.ArticleBody))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func repairPrompt(draft string) string {
	return fmt.Sprintf(`Convert the relief effort plan below into a single JSON object matching exactly this structure:

%s

Rules: monetary_goal and quantity must be plain numbers, deployment_date must be an ISO date, every field must be filled in, and inkind_donation must contain at least one item. Respond with only the JSON object and nothing else.

Plan:
%s`, jsonTemplate, draft)
}
