// Package ai adapts an OpenAI-compatible chat completions endpoint to the
// course.Extractor contract and owns the parsing/validation of model output.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/metrics"
)

// Config captures the endpoint and pacing for the AI extractor.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	VisionModel       string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
}

// Client implements course.Extractor.
type Client struct {
	http        *resty.Client
	model       string
	visionModel string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

var _ course.Extractor = (*Client)(nil)

// New builds a Client. A nil logger is replaced with a no-op logger.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("ai base url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ai model is required")
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:        client,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:      logger.Named("ai"),
	}, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ExtractFromText sends sanitized page text to the model.
func (c *Client) ExtractFromText(ctx context.Context, text string) ([]course.Candidate, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: TextPrompt(text)},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	return c.complete(ctx, "text", req)
}

// ExtractFromImage sends an image as a base64 data URL to the vision model.
func (c *Client) ExtractFromImage(ctx context.Context, image []byte, mimeType string) ([]course.Candidate, error) {
	if len(image) == 0 {
		return nil, nil
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(image)
	}
	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	req := chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: ImagePrompt()},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			}},
		},
	}
	return c.complete(ctx, "image", req)
}

func (c *Client) complete(ctx context.Context, kind string, req chatRequest) ([]course.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ai rate limit wait: %w", err)
	}
	start := time.Now()
	var out chatResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&out).
		Post("/chat/completions")
	if err != nil {
		metrics.ObserveAIRequest(kind, "transport_error", time.Since(start))
		return nil, fmt.Errorf("ai %s request: %w", kind, err)
	}
	if res.IsError() {
		metrics.ObserveAIRequest(kind, "http_error", time.Since(start))
		msg := res.Status()
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("ai %s request: status %d: %s", kind, res.StatusCode(), msg)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		metrics.ObserveAIRequest(kind, "empty", time.Since(start))
		return nil, ErrEmptyResponse
	}

	content := out.Choices[0].Message.Content
	cands, err := ParseCourses(content)
	if err != nil {
		metrics.ObserveAIRequest(kind, "malformed", time.Since(start))
		c.logger.Warn("unparseable ai response",
			zap.String("kind", kind),
			logging.Err(err),
			logging.Snippet("content", content, 300),
		)
		return nil, err
	}
	cleaned, verr := Clean(cands)
	if verr != nil {
		c.logger.Warn("ai response failed validation; kept usable entries",
			zap.String("kind", kind),
			zap.Int("parsed", len(cands)),
			zap.Int("kept", len(cleaned)),
			logging.Err(verr),
		)
	}
	metrics.ObserveAIRequest(kind, "ok", time.Since(start))
	return cleaned, nil
}
