// Package enrich calls an external generative-text API to derive course
// metadata (title, summary, keywords, learning objectives, language) from
// extracted SCO text.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/mokuji/internal/config"
	"github.com/hyperjump/mokuji/internal/models"
	"go.uber.org/zap"
)

// promptTemplate asks for exactly the five metadata keys. The extracted text
// is appended verbatim.
const promptTemplate = `Analyze the following e-learning course content and respond with ONLY a JSON object, no other text, containing exactly these five keys:
- "title": a concise course title (string)
- "summary": a 4-5 sentence summary (string)
- "keywords": 7-10 relevant keywords (array of strings)
- "learning_objectives": 2-4 learning objectives, each beginning with an imperative verb (array of strings)
- "language": the natural-language name of the content language (string)

Course content:
`

// Client talks to a Gemini-style generateContent endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	logger     *zap.Logger
}

// NewClient builds a client from config. The request timeout bounds the
// whole call so one hanging request cannot hold request capacity.
func NewClient(cfg *config.EnrichConfig, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		logger:     logger,
	}
}

// generateContent request/response envelope shapes.
type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Enrich sends text to the metadata service and returns a per-stage tagged
// result. Empty text and a missing API key fail locally without any network
// call and report as skips; every service-side failure reports as an error
// with a cause tag and diagnostics.
func (c *Client) Enrich(ctx context.Context, text string) *models.EnrichmentResult {
	if strings.TrimSpace(text) == "" {
		return &models.EnrichmentResult{
			Status: models.StageSkipped,
			Cause:  models.EnrichEmptyInput,
			Detail: "no extracted text to enrich",
		}
	}
	if c.apiKey == "" {
		return &models.EnrichmentResult{
			Status: models.StageSkipped,
			Cause:  models.EnrichMissingKey,
			Detail: "no API key configured for the enrichment service",
		}
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: promptTemplate + text}}}},
	})
	if err != nil {
		return transportFailure(fmt.Sprintf("encode request: %v", err))
	}

	reqURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.endpoint, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return transportFailure(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("enrichment request failed", zap.Error(err))
		return transportFailure(err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportFailure(fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &models.EnrichmentResult{
			Status:     models.StageError,
			Cause:      models.EnrichRateLimited,
			Detail:     "enrichment service rate limit hit",
			HTTPStatus: resp.StatusCode,
			Raw:        string(body),
		}
	}
	if resp.StatusCode != http.StatusOK {
		// Not a transport failure: the service answered. The numeric status
		// and raw body are the tag; transport_error stays reserved for
		// timeouts, DNS failures, and resets.
		return &models.EnrichmentResult{
			Status:     models.StageError,
			Detail:     fmt.Sprintf("unexpected status %d from enrichment service", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Raw:        string(body),
		}
	}

	return parseEnvelope(body)
}

// parseEnvelope unwraps the provider envelope and decodes the nested JSON
// payload. The five-key schema requested in the prompt is not validated;
// the provider's object is returned as-is.
func parseEnvelope(body []byte) *models.EnrichmentResult {
	var envelope generateResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return malformed("response envelope is not valid JSON", string(body))
	}
	if len(envelope.Candidates) == 0 ||
		len(envelope.Candidates[0].Content.Parts) == 0 ||
		envelope.Candidates[0].Content.Parts[0].Text == "" {
		return malformed("response envelope lacks the expected text field", string(body))
	}

	text := stripFences(envelope.Candidates[0].Content.Parts[0].Text)
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return malformed("nested text is not parseable as JSON", text)
	}
	return &models.EnrichmentResult{Status: models.StageSuccess, Data: data}
}

// stripFences removes a surrounding ```json ... ``` code fence, which the
// provider sometimes wraps around the payload despite the instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func transportFailure(detail string) *models.EnrichmentResult {
	return &models.EnrichmentResult{
		Status: models.StageError,
		Cause:  models.EnrichTransportError,
		Detail: detail,
	}
}

func malformed(detail, raw string) *models.EnrichmentResult {
	return &models.EnrichmentResult{
		Status: models.StageError,
		Cause:  models.EnrichMalformedResponse,
		Detail: detail,
		Raw:    raw,
	}
}
