// Package insights calls an external generative-text model to produce
// free-text analysis of a patient's record. It is a single request/response
// integration; prompt wording lives here, nothing else does.
package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/gyeh/careview/internal/model"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("insights: no API key configured")

// Client calls the generative-model endpoint.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *retryablehttp.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL overrides the model endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithModel selects a model other than the default.
func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func NewClient(apiKey string, opts ...Option) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = 2
	hc.RetryWaitMin = 500 * time.Millisecond
	hc.RetryWaitMax = 2 * time.Second
	hc.HTTPClient.Timeout = 60 * time.Second
	hc.Logger = nil

	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   defaultModel,
		http:    hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model endpoint returned %s", resp.Status)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("model returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// MedicationInsights analyzes a patient's medication history.
func (c *Client) MedicationInsights(ctx context.Context, p *model.PatientRecord, meds []model.MedicationRecord) (string, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "You are a clinical data analyst examining patient medication data.\n")
	fmt.Fprintf(&b, "Analyze the following medication history and provide insights on usage patterns, potential adherence issues, concerning combinations, and opportunities to simplify the regimen.\n\n")
	writePatientLine(&b, p)
	b.WriteString("\nMedication history:\n")
	for _, m := range meds {
		fmt.Fprintf(&b, "- %s (%s): started %s, status: %s\n",
			m.Medication, strOr(m.Dosage, "no dosage info"), dateOr(m.StartDate), strOr(m.Status, "unknown"))
	}
	return c.generate(ctx, b.String())
}

// ConditionInsights analyzes a patient's condition history.
func (c *Client) ConditionInsights(ctx context.Context, p *model.PatientRecord, conds []model.ConditionRecord) (string, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "You are a clinical data analyst examining patient condition data.\n")
	fmt.Fprintf(&b, "Analyze the following condition history and provide insights on progression over time, related conditions, and ongoing versus resolved problems.\n\n")
	writePatientLine(&b, p)
	b.WriteString("\nCondition history:\n")
	for _, cond := range conds {
		fmt.Fprintf(&b, "- %s: onset %s, %s\n",
			cond.Condition, dateOr(cond.OnsetDate), resolvedOr(cond.AbatementDate))
	}
	return c.generate(ctx, b.String())
}

// ComprehensiveInsights analyzes the full record.
func (c *Client) ComprehensiveInsights(ctx context.Context, p *model.PatientRecord, conds []model.ConditionRecord, meds []model.MedicationRecord, encs []model.EncounterRecord) (string, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "You are a clinical data analyst producing a comprehensive summary of a patient record.\n")
	fmt.Fprintf(&b, "Summarize the overall health picture, notable risks, and care gaps.\n\n")
	writePatientLine(&b, p)
	b.WriteString("\nConditions:\n")
	for _, cond := range conds {
		fmt.Fprintf(&b, "- %s: onset %s, %s\n", cond.Condition, dateOr(cond.OnsetDate), resolvedOr(cond.AbatementDate))
	}
	b.WriteString("\nMedications:\n")
	for _, m := range meds {
		fmt.Fprintf(&b, "- %s (%s): status %s\n", m.Medication, strOr(m.Dosage, "no dosage info"), strOr(m.Status, "unknown"))
	}
	b.WriteString("\nEncounters:\n")
	for _, e := range encs {
		fmt.Fprintf(&b, "- %s: %s\n", e.EncounterType, dateOr(e.StartDate))
	}
	return c.generate(ctx, b.String())
}

// Chat answers a free-text question about the patient's record.
func (c *Client) Chat(ctx context.Context, question string, p *model.PatientRecord, conds []model.ConditionRecord, meds []model.MedicationRecord) (string, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "You are a clinical assistant answering a question about one patient's record. Answer from the record only; say so when the record does not contain the answer.\n\n")
	writePatientLine(&b, p)
	b.WriteString("\nConditions:\n")
	for _, cond := range conds {
		fmt.Fprintf(&b, "- %s\n", cond.Condition)
	}
	b.WriteString("\nMedications:\n")
	for _, m := range meds {
		fmt.Fprintf(&b, "- %s (%s)\n", m.Medication, strOr(m.Status, "unknown"))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", question)
	return c.generate(ctx, b.String())
}

func writePatientLine(b *bytes.Buffer, p *model.PatientRecord) {
	fmt.Fprintf(b, "Patient: %s (%s, DOB: %s)\n",
		p.Name, strOr(p.Gender, "unknown"), dateOr(p.BirthDate))
}

func strOr(s *string, def string) string {
	if s == nil || *s == "" {
		return def
	}
	return *s
}

func dateOr(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return t.Format(time.DateOnly)
}

func resolvedOr(abatement *time.Time) string {
	if abatement == nil {
		return "ongoing"
	}
	return "resolved " + abatement.Format(time.DateOnly)
}
