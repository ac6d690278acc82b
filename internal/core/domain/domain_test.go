package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractedFact_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		company   string
		amount    string
		round     string
		investors string
	}{
		{
			name:      "canonical keys with investor list",
			input:     `{"company_name":"Acme","funding_amount_usd":"$5M","funding_round_type":"Seed","other_investors":["A","B"]}`,
			company:   "Acme",
			amount:    "$5M",
			round:     "Seed",
			investors: "A, B",
		},
		{
			name:      "short aliases and numeric amount",
			input:     `{"company_name":"Beta","funding_amount":5000000,"round_type":"Series A","other_investors":"Paradigm"}`,
			company:   "Beta",
			amount:    "5000000",
			round:     "Series A",
			investors: "Paradigm",
		},
		{
			name:  "nulls become empty cells",
			input: `{"company_name":null,"funding_amount_usd":null,"other_investors":null}`,
		},
		{
			name:  "empty object",
			input: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fact ExtractedFact
			require.NoError(t, json.Unmarshal([]byte(tt.input), &fact))

			assert.Equal(t, tt.company, deref(fact.CompanyName))
			assert.Equal(t, tt.amount, deref(fact.FundingAmount))
			assert.Equal(t, tt.round, deref(fact.RoundType))
			assert.Equal(t, tt.investors, fact.OtherInvestors.String())
		})
	}
}

func TestBuildRow(t *testing.T) {
	company := "Acme"
	lead := "a16z"

	msg := RawMessage{
		ID:   42,
		Date: time.Date(2024, 5, 1, 12, 30, 0, 0, time.FixedZone("CET", 3600)),
		Text: "  Acme raised $5M  ",
	}

	row := BuildRow(msg, "Acme raised $5M", ExtractedFact{
		CompanyName:    &company,
		LeadInvestor:   &lead,
		OtherInvestors: Investors{List: []string{"X", "Y"}, IsSet: true},
	})

	require.Len(t, row, len(Headers))
	assert.Equal(t, "42", row[0])
	assert.Equal(t, "2024-05-01T11:30:00Z", row[1])
	assert.Equal(t, msg.Text, row[2])
	assert.Equal(t, "Acme raised $5M", row[3])
	assert.Equal(t, "Acme", row[4])
	assert.Empty(t, row[5])
	assert.Equal(t, "a16z", row[8])
	assert.Equal(t, "X, Y", row[9])
}

func TestParseMessageID(t *testing.T) {
	tests := []struct {
		input string
		want  int64
		ok    bool
	}{
		{"123", 123, true},
		{" 7 ", 7, true},
		{"0", 0, true},
		{"", 0, false},
		{"message_id", 0, false},
		{"-5", 0, false},
		{"12.5", 0, false},
		{"1e3", 0, false},
		{"99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseMessageID(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewExtractionItem_Truncates(t *testing.T) {
	long := strings.Repeat("я", MaxItemTextLen+10)

	item := NewExtractionItem(1, long)

	assert.Equal(t, MaxItemTextLen, len([]rune(item.Text)))
	assert.Equal(t, "short", NewExtractionItem(2, "short").Text)
}

func TestRawMessage_HasText(t *testing.T) {
	assert.True(t, RawMessage{Text: "hi"}.HasText())
	assert.False(t, RawMessage{Text: "  \n "}.HasText())
	assert.False(t, RawMessage{}.HasText())
}

func TestExtractedFact_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		input string
		empty bool
	}{
		{"empty object", `{}`, true},
		{"all null", `{"company_name": null, "other_investors": null}`, false},
		{"unknown key only", `{"note": "n/a"}`, false},
		{"one field", `{"round_type": "Seed"}`, false},
		{"empty investors list", `{"other_investors": []}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fact ExtractedFact
			require.NoError(t, json.Unmarshal([]byte(tt.input), &fact))
			assert.Equal(t, tt.empty, fact.IsEmpty())
		})
	}
}

func TestExtractedFact_NullValues(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		amount string
		round  string
		lead   string
	}{
		{
			name:   "null primary falls back to alias",
			input:  `{"funding_amount_usd": null, "funding_amount": "$5M", "funding_round_type": null, "round_type": "Seed"}`,
			amount: "$5M",
			round:  "Seed",
		},
		{
			name:   "primary wins over alias",
			input:  `{"funding_amount_usd": "$7M", "funding_amount": "$5M", "lead_investor": null}`,
			amount: "$7M",
		},
		{
			name:  "all null gives empty cells",
			input: `{"company_name": null, "company_description": null, "funding_amount_usd": null, "funding_round_type": null, "lead_investor": null, "other_investors": null}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fact ExtractedFact
			require.NoError(t, json.Unmarshal([]byte(tt.input), &fact))

			row := BuildRow(RawMessage{ID: 1}, "", fact)
			assert.Equal(t, tt.amount, row[6])
			assert.Equal(t, tt.round, row[7])
			assert.Equal(t, tt.lead, row[8])
			assert.Nil(t, fact.LeadInvestor)
			assert.False(t, fact.IsEmpty())
		})
	}
}
