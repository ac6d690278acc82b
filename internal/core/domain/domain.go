package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// MaxItemTextLen bounds the text of a single extraction item (in runes).
const MaxItemTextLen = 6000

// Headers is the fixed schema of the destination table, in column order.
var Headers = []string{
	"message_id",
	"timestamp",
	"text",
	"Cleaned Text",
	"Company",
	"Company Description",
	"Amount Raised",
	"Round Type",
	"Lead Investors",
	"Other Investors",
}

// RawMessage is a channel message as returned by the message source.
type RawMessage struct {
	ID   int64
	Date time.Time
	Text string
}

// HasText reports whether the message carries any non-blank text.
func (m RawMessage) HasText() bool {
	return strings.TrimSpace(m.Text) != ""
}

// ExtractionItem is one entry of a batch prompt.
type ExtractionItem struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

// NewExtractionItem builds an item from a message, truncating long text.
func NewExtractionItem(id int64, text string) ExtractionItem {
	return ExtractionItem{ID: id, Text: truncateRunes(text, MaxItemTextLen)}
}

// ExtractedFact is the structured record the model returns for one announcement.
// Every field is optional.
type ExtractedFact struct {
	CompanyName        *string   `json:"company_name"`
	CompanyDescription *string   `json:"company_description"`
	FundingAmount      *string   `json:"funding_amount_usd"`
	RoundType          *string   `json:"funding_round_type"`
	LeadInvestor       *string   `json:"lead_investor"`
	OtherInvestors     Investors `json:"other_investors"`

	// keys is how many keys the decoded object carried, null values included.
	keys int
}

// UnmarshalJSON accepts the canonical keys plus the short aliases some models emit,
// and tolerates numbers where strings are expected.
func (f *ExtractedFact) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.keys = len(raw)
	f.CompanyName = scalarField(raw, "company_name")
	f.CompanyDescription = scalarField(raw, "company_description")
	f.FundingAmount = scalarField(raw, "funding_amount_usd", "funding_amount")
	f.RoundType = scalarField(raw, "funding_round_type", "round_type")
	f.LeadInvestor = scalarField(raw, "lead_investor")

	if v, ok := raw["other_investors"]; ok {
		if err := f.OtherInvestors.UnmarshalJSON(v); err != nil {
			f.OtherInvestors = Investors{}
		}
	}

	return nil
}

// IsEmpty reports whether the model returned an object with no keys. An object
// whose keys are all null is not empty: it becomes a row of empty cells.
func (f ExtractedFact) IsEmpty() bool {
	return f.keys == 0 &&
		f.CompanyName == nil &&
		f.CompanyDescription == nil &&
		f.FundingAmount == nil &&
		f.RoundType == nil &&
		f.LeadInvestor == nil &&
		!f.OtherInvestors.IsSet
}

// Investors holds the "other investors" field, which models return either as a
// list of names or as a single free-text string.
type Investors struct {
	List  []string
	Text  string
	IsSet bool
}

// UnmarshalJSON decodes a list of strings, a string, a number or null.
func (inv *Investors) UnmarshalJSON(data []byte) error {
	*inv = Investors{}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}

		list := make([]string, 0, len(items))

		for _, item := range items {
			if s := scalarString(item); s != nil {
				list = append(list, *s)
			}
		}

		inv.List = list
		inv.IsSet = true

		return nil
	}

	if s := scalarString(trimmed); s != nil {
		inv.Text = *s
		inv.IsSet = true
	}

	return nil
}

// String renders the investors cell: list entries joined with ", ".
func (inv Investors) String() string {
	if inv.List != nil {
		return strings.Join(inv.List, ", ")
	}

	return inv.Text
}

// OutputRow is one row of the destination table, aligned to Headers.
type OutputRow []string

// BuildRow assembles the output row for a message and its extracted fact.
// cleaned is the normalised message text.
func BuildRow(msg RawMessage, cleaned string, fact ExtractedFact) OutputRow {
	return OutputRow{
		strconv.FormatInt(msg.ID, 10),
		FormatTimestamp(msg.Date),
		msg.Text,
		cleaned,
		deref(fact.CompanyName),
		deref(fact.CompanyDescription),
		deref(fact.FundingAmount),
		deref(fact.RoundType),
		deref(fact.LeadInvestor),
		fact.OtherInvestors.String(),
	}
}

// FormatTimestamp renders a message date as an ISO-8601 UTC instant.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseMessageID parses an identifier cell. Only non-negative integer literals
// are accepted; anything else reports ok=false.
func ParseMessageID(cell string) (int64, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}

	for _, r := range cell {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	id, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

func scalarField(raw map[string]json.RawMessage, keys ...string) *string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s := scalarString(v); s != nil {
				return s
			}
		}
	}

	return nil
}

// scalarString renders a JSON string, number or bool. null and compound
// values give nil.
func scalarString(data json.RawMessage) *string {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return &s
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		str := n.String()
		return &str
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		str := strconv.FormatBool(b)
		return &str
	}

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}
