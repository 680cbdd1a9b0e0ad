// Package ai wraps the generative text provider used for load and
// diagnostic estimation. Every call degrades to a deterministic local
// estimate when the provider is missing, unreachable or returns output
// that cannot be parsed; callers never see an error.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const defaultModel = "gemini-2.5-flash"

// Estimate is the provider's answer to "can this vehicle carry this
// cargo over this distance, and at what price".
type Estimate struct {
	LoadPct          int    `json:"loadPercentage"`
	FuelCost         int    `json:"estimatedFuelCost"`
	MarketPrice      int    `json:"marketPrice"`
	SafetyRating     string `json:"safetyRating"`
	Advice           string `json:"advice"`
	MarketComparison string `json:"marketComparison"`
}

// Diagnosis is the provider's answer to a symptom description.
type Diagnosis struct {
	Causes         []string `json:"causes"`
	Recommendation string   `json:"recommendation"`
	Urgency        string   `json:"urgency"`
}

// Client talks to a Gemini-style generateContent endpoint.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient builds a client from the AI_API_KEY and AI_BASE_URL
// environment variables. An empty key leaves the client in offline mode,
// where every call answers with the local fallback.
func NewClient() *Client {
	baseURL := os.Getenv("AI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &Client{
		apiKey:  os.Getenv("AI_API_KEY"),
		baseURL: baseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// EstimateLoad prices a transport job for the given vehicle and cargo.
func (c *Client) EstimateLoad(ctx context.Context, vehicleType, cargoDesc string, distanceKm float64) Estimate {
	fallback := mockEstimate(distanceKm)
	if cargoDesc == "" {
		return fallback
	}

	prompt := fmt.Sprintf(`I have a %s. I need to transport: %q. Distance is %.0fkm in India.
Estimate the load percentage (0-100), fuel cost in INR, a fair market price in INR,
a safety rating (High/Medium/Low) and one sentence of advice.
Output ONLY a JSON object with keys loadPercentage, estimatedFuelCost, marketPrice,
safetyRating, advice, marketComparison.`, vehicleType, cargoDesc, distanceKm)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		log.WithError(err).Debug("AI estimation unavailable, using local estimate")
		return fallback
	}
	var est Estimate
	if err := unmarshalJSONBlock(text, &est); err != nil {
		log.WithError(err).Debug("AI estimation unparseable, using local estimate")
		return fallback
	}
	return est
}

// Assess produces a one-sentence suitability note for a marketplace load.
func (c *Client) Assess(ctx context.Context, vehicleType, material, weight string) string {
	prompt := fmt.Sprintf(`You are a logistics assistant for a driver driving a %s.
Cargo material: %q, weight: %s.
Provide a 1-sentence assessment (max 20 words) on whether this load is
suitable, safe, and profitable for the vehicle.`, vehicleType, material, weight)

	text, err := c.generate(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		return "Assessment unavailable; verify load weight against vehicle capacity before accepting."
	}
	return strings.TrimSpace(text)
}

// Diagnose suggests probable causes for a symptom description.
func (c *Client) Diagnose(ctx context.Context, symptoms string) Diagnosis {
	fallback := Diagnosis{
		Causes:         []string{"Battery Dead", "Alternator Failure", "Loose Wiring"},
		Recommendation: "Check voltage with a multimeter.",
		Urgency:        "Medium",
	}
	if symptoms == "" {
		return fallback
	}

	prompt := fmt.Sprintf(`I am a mechanic. The vehicle has these symptoms: %q.
Output ONLY a JSON object with keys causes (array of 3 strings),
recommendation (string) and urgency (High/Medium/Low).`, symptoms)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return fallback
	}
	var d Diagnosis
	if err := unmarshalJSONBlock(text, &d); err != nil || len(d.Causes) == 0 {
		return fallback
	}
	return d
}

type promptPart struct {
	Text string `json:"text"`
}

type promptContent struct {
	Parts []promptPart `json:"parts"`
}

type generateRequest struct {
	Contents []promptContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content promptContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("no API key configured")
	}

	req := generateRequest{Contents: []promptContent{{Parts: []promptPart{{Text: prompt}}}}}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// unmarshalJSONBlock extracts the first JSON object from model output,
// tolerating markdown fences and surrounding prose.
func unmarshalJSONBlock(text string, v any) error {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}

// mockEstimate is the deterministic offline estimate, same constants the
// dashboards shipped with.
func mockEstimate(distanceKm float64) Estimate {
	return Estimate{
		LoadPct:          75,
		FuelCost:         int(distanceKm * 8),
		MarketPrice:      int(distanceKm * 25),
		SafetyRating:     "Medium",
		Advice:           "Ensure cargo is strapped down securely. Real-time market data unavailable.",
		MarketComparison: "Offline estimate",
	}
}
