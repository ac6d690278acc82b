package llm

import (
	"encoding/json"
	"strings"

	"github.com/lueurxax/fundraising-ledger/internal/core/domain"
)

const (
	promptTextPlaceholder  = "{{INPUT_TEXT}}"
	promptItemsPlaceholder = "{{ITEMS}}"
)

const defaultSinglePrompt = `Parse the following text and extract the specified information into a valid JSON object.

Input Text:
"{{INPUT_TEXT}}"

Extract these fields:
- company_name
- company_description
- funding_amount_usd
- funding_round_type
- lead_investor
- other_investors

Output ONLY the JSON object.`

const defaultBatchPrompt = `You are a JSON parser. For each item, extract:
company_name, company_description, funding_amount_usd, funding_round_type, lead_investor, other_investors.
Return ONLY a JSON array where each element is {"id": <id>, "parsed": {"company_name": ..., "company_description": ..., "funding_amount_usd": ..., "funding_round_type": ..., "lead_investor": ..., "other_investors": ...}}.
Items:
{{ITEMS}}`

// BuildSinglePrompt renders the one-message extraction prompt.
func BuildSinglePrompt(text string) string {
	return strings.Replace(defaultSinglePrompt, promptTextPlaceholder, text, 1)
}

// BuildBatchPrompt renders the batch extraction prompt with items serialised
// as a JSON array of {id, text}.
func BuildBatchPrompt(items []domain.ExtractionItem) (string, error) {
	if items == nil {
		items = []domain.ExtractionItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	return strings.Replace(defaultBatchPrompt, promptItemsPlaceholder, string(data), 1), nil
}
