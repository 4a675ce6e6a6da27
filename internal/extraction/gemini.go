package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fraudshield/backend/internal/models"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const extractionPrompt = "Act as a financial fraud investigator. Extract these fields from the attached payment screenshot:\n" +
	"- \"txn_id\": string or null\n" +
	"- \"amount\": number or null (no currency symbols, no thousands separators)\n" +
	"- \"utr\": string or null (bank transaction reference)\n" +
	"- \"beneficiary_vpa\": string or null (payee UPI id or account identifier)\n" +
	"- \"bank_name\": string or null\n" +
	"- \"incident_date\": string or null, ISO format \"YYYY-MM-DD\"\n" +
	"- \"legitimacy_score\": integer 0-100, how genuine the screenshot looks\n\n" +
	"Return ONLY one raw JSON object.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// GeminiExtractor reads payment screenshots with a Gemini model.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	log    *zap.Logger
}

func NewGeminiExtractor(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction: create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model, log: log}, nil
}

func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*models.ExtractedRecord, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction: generate content: %w", err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("extraction: empty response from model")
	}

	rec, err := ParseRecord(raw)
	if err != nil {
		e.log.Warn("unparseable extraction response", zap.Int("response_len", len(raw)), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// ParseRecord decodes a model response into an ExtractedRecord. Numbers may
// arrive as JSON numbers or numeric strings; anything unusable becomes nil.
func ParseRecord(raw string) (*models.ExtractedRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &fields); err != nil {
		return nil, fmt.Errorf("extraction: unmarshal JSON: %w", err)
	}

	rec := &models.ExtractedRecord{
		TxnID:          stringField(fields, "txn_id"),
		Amount:         numberField(fields, "amount"),
		UTR:            stringField(fields, "utr"),
		BeneficiaryVPA: stringField(fields, "beneficiary_vpa"),
		BankName:       stringField(fields, "bank_name"),
		IncidentDate:   stringField(fields, "incident_date"),
	}
	if v := numberField(fields, "legitimacy_score"); v != nil {
		score := int(math.Round(math.Max(0, math.Min(100, *v))))
		rec.LegitimacyScore = &score
	}
	return rec, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func stringField(fields map[string]any, key string) *string {
	switch v := fields[key].(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, "null") {
			return nil
		}
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	}
	return nil
}

func numberField(fields map[string]any, key string) *float64 {
	switch v := fields[key].(type) {
	case float64:
		return &v
	case string:
		clean := strings.NewReplacer(",", "", "₹", "", "Rs.", "", "INR", "").Replace(v)
		f, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
