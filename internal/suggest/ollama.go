package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"draftline/internal/draft"
)

// Ollama calls a /api/generate style endpoint. Requests are throttled so a
// burst of suggestion clicks cannot flood the model server.
type Ollama struct {
	apiURL  string
	model   string
	http    *http.Client
	limiter *rate.Limiter
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func NewOllama(apiURL, model string, requestsPerSecond int) *Ollama {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Ollama{
		apiURL:  apiURL,
		model:   model,
		http:    &http.Client{Timeout: 90 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

func tokenBudget(size draft.ResponseSize) int {
	switch size {
	case draft.ResponseShort:
		return 32
	case draft.ResponseLong:
		return 400
	default:
		return 120
	}
}

func (o *Ollama) Generate(ctx context.Context, req Request) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for suggestion slot: %w", err)
	}

	body, err := json.Marshal(ollamaRequest{
		Model:   o.model,
		Prompt:  BuildPrompt(req),
		Stream:  false,
		Options: map[string]any{"num_predict": tokenBudget(req.Size), "temperature": 0.2},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("model API error: status %d, body: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	text := strings.Trim(strings.TrimSpace(out.Response), `"`)
	if text == "" {
		return "", fmt.Errorf("model returned an empty suggestion")
	}
	return text, nil
}
