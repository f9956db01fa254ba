package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const stabilityBaseURL = "https://api.stability.ai"

// StabilityProvider is the lower-fidelity secondary generation backend.
type StabilityProvider struct {
	apiKey     string
	engine     string
	baseURL    string
	httpClient *http.Client
}

func NewStabilityProvider(apiKey, engine, endpoint string, timeout time.Duration) *StabilityProvider {
	if endpoint == "" {
		endpoint = stabilityBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &StabilityProvider{
		apiKey:     apiKey,
		engine:     engine,
		baseURL:    endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *StabilityProvider) Name() string { return "stability" }

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Samples     int               `json:"samples"`
}

type stabilityPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64       string `json:"base64"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
	Message string `json:"message,omitempty"`
}

func (s *StabilityProvider) Attempt(ctx context.Context, p Payload) (*Result, error) {
	if s.apiKey == "" {
		return nil, &FatalError{Reason: "stability API key not configured"}
	}

	req := stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: p.Prompt, Weight: 1}},
		Width:       snap64(p.Width),
		Height:      snap64(p.Height),
		Samples:     1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &FatalError{Reason: "marshal request: " + err.Error()}
	}

	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", s.baseURL, s.engine)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Reason: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RetryableError{Reason: "http: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RetryableError{Reason: "read response: " + err.Error()}
	}

	log.Debug().Str("product", p.ProductID).Str("ratio", p.RatioName).
		Int("status", resp.StatusCode).Dur("duration", time.Since(start)).
		Msg("stability generation call completed")

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var out stabilityResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &RetryableError{Reason: "parse response: " + err.Error()}
	}
	if len(out.Artifacts) == 0 {
		return nil, &FatalError{Reason: "no artifacts in response"}
	}
	art := out.Artifacts[0]
	if art.FinishReason == "CONTENT_FILTERED" {
		return nil, &FatalError{Reason: "content policy rejection"}
	}
	data, err := base64.StdEncoding.DecodeString(art.Base64)
	if err != nil {
		return nil, &RetryableError{Reason: "decode image: " + err.Error()}
	}
	return &Result{Data: data, MIME: "image/png"}, nil
}

// snap64 rounds a dimension to the nearest multiple of 64, the SDXL
// generation grid.
func snap64(n int) int {
	if n < 64 {
		return 64
	}
	return ((n + 32) / 64) * 64
}
