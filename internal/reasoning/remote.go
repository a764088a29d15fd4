package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rinkside/standwatch/internal/models"
)

const apiVersion = "2023-06-01"

// RemoteClassifier asks a hosted model to explain a drift summary. Responses
// must be a single JSON object matching Result; markdown fences around it
// are tolerated.
type RemoteClassifier struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewRemoteClassifier builds the classifier. The HTTP client carries its own
// timeout as a backstop; per-call deadlines come from the adapter's context.
func NewRemoteClassifier(endpoint, apiKey, model string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Classify implements Classifier.
func (c *RemoteClassifier) Classify(ctx context.Context, s DriftSummary) (Result, error) {
	text, err := c.send(ctx, buildPrompt(s))
	if err != nil {
		return Result{}, err
	}
	return parseResult(text)
}

func (c *RemoteClassifier) send(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classification request failed with status %d: %s", resp.StatusCode, respBody)
	}

	var parsed messageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("api error: %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

func buildPrompt(s DriftSummary) string {
	summary, _ := json.Marshal(s)
	return fmt.Sprintf(`You are a concession operations analyst watching live arena sales drift against forecast.

Drift summary for one stand:
%s

Classify the most likely cause. Respond with ONLY a JSON object:
{
  "cause": "untagged_promo|stand_outage|demand_spike|weather|redistribution|noise|unknown",
  "confidence": 0.0-1.0,
  "alert_text": "one or two sentences a shift manager can act on",
  "actions": [{"stand": "...", "action": "increase_prep|decrease_prep|redistribute|stop_prep|hold|scale_up_prep", "item": "optional", "quantity_change_pct": 0}]
}`, summary)
}

var (
	jsonFenceRe    = regexp.MustCompile("(?s)```json\\s*\\n?(.*?)\\s*```")
	genericFenceRe = regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\s*```")
)

// extractJSON pulls a JSON object out of a possibly fenced response.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := jsonFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := genericFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(s, "{") {
		return s
	}
	return ""
}

func parseResult(text string) (Result, error) {
	jsonStr := extractJSON(text)
	if jsonStr == "" {
		return Result{}, fmt.Errorf("response contains no JSON object")
	}
	var result Result
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return Result{}, fmt.Errorf("parsing classification: %w", err)
	}
	switch result.Cause {
	case models.CauseUntaggedPromo, models.CauseStandOutage, models.CauseDemandSpike,
		models.CauseWeather, models.CauseRedistribution, models.CauseNoise, models.CauseUnknown:
	default:
		return Result{}, fmt.Errorf("unknown cause %q", result.Cause)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return Result{}, fmt.Errorf("confidence %.2f out of range", result.Confidence)
	}
	return result, nil
}
