package provider

// gemini.go is a REST client for Gemini image generation. Direct HTTP is
// used instead of an SDK because image output support lags in the Go SDKs.

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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider is the high-fidelity primary generation backend.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiProvider(apiKey, model, endpoint string, timeout time.Duration) *GeminiProvider {
	if endpoint == "" {
		endpoint = geminiBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second // image generation can take 10-30s
	}
	return &GeminiProvider{
		apiKey:     apiKey,
		model:      model,
		baseURL:    endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *GeminiProvider) Name() string { return "gemini" }

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (g *GeminiProvider) Attempt(ctx context.Context, p Payload) (*Result, error) {
	if g.apiKey == "" {
		return nil, &FatalError{Reason: "gemini API key not configured"}
	}

	req := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf("%s. Output a %dx%d image.", p.Prompt, p.Width, p.Height)}},
		}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &FatalError{Reason: "marshal request: " + err.Error()}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FatalError{Reason: "create request: " + err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
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
		Msg("gemini generation call completed")

	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var out geminiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &RetryableError{Reason: "parse response: " + err.Error()}
	}
	if out.Error != nil {
		return nil, &FatalError{Reason: fmt.Sprintf("API error %d: %s", out.Error.Code, out.Error.Message)}
	}

	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, &RetryableError{Reason: "decode image: " + err.Error()}
			}
			return &Result{Data: data, MIME: part.InlineData.MIMEType}, nil
		}
	}
	return nil, &FatalError{Reason: "no image in response"}
}

// classifyStatus maps an HTTP status to the chain's failure taxonomy.
// 429 and 5xx are transient; everything else non-200 is fatal.
func classifyStatus(code int, body []byte) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return &RetryableError{Reason: fmt.Sprintf("status %d: %s", code, truncate(string(body), 200))}
	default:
		return &FatalError{Reason: fmt.Sprintf("status %d: %s", code, truncate(string(body), 200))}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
