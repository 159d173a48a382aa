package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusguard/internal/domain"
)

const (
	// DefaultGeminiEndpoint is the generateContent endpoint used for classification.
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

	defaultClassifyTimeout = 10 * time.Second
	maxClassifyResponse    = 1 << 20
)

var workReply = regexp.MustCompile(`(?i)work|study`)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiClassifier implements domain.ContentClassifier with the Gemini
// generateContent API. Any reply mentioning work or study is CategoryWork.
type GeminiClassifier struct {
	apiKey   string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewGeminiClassifier creates a classifier. An empty endpoint uses DefaultGeminiEndpoint.
func NewGeminiClassifier(apiKey, endpoint string, logger *zap.Logger) *GeminiClassifier {
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	return &GeminiClassifier{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultClassifyTimeout},
		logger:   logger,
	}
}

// Classify asks the model for a one-word label.
func (c *GeminiClassifier) Classify(ctx context.Context, page domain.PageInfo) (domain.Category, error) {
	prompt := fmt.Sprintf(
		"Classify this page as work_or_study or entertainment. Return just one word.\nURL: %s\nTITLE: %s\nDESCRIPTION: %s",
		page.URL, page.Title, page.Description,
	)
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxClassifyResponse))
	if err != nil {
		return "", fmt.Errorf("failed to read classification response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classification status %d: %s", res.StatusCode, truncate(string(body), 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed classification response: %w", err)
	}

	var text string
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		text = parsed.Candidates[0].Content.Parts[0].Text
	}

	category := domain.CategoryEntertainment
	if workReply.MatchString(text) {
		category = domain.CategoryWork
	}
	c.logger.Debug("page classified",
		zap.String("url", page.URL),
		zap.String("category", string(category)))
	return category, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Ensure GeminiClassifier implements domain.ContentClassifier.
var _ domain.ContentClassifier = (*GeminiClassifier)(nil)
