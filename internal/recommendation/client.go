package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// LLMClient is the interface both recommendation backends satisfy.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// ── APIClient: Anthropic Messages API ─────────────────────

const (
	recommendationMaxTokens = 4096
	maxCallAttempts         = 3
)

type APIClient struct {
	client  anthropic.Client
	model   string
	backoff time.Duration
}

func NewAPIClient(apiKey, model string) *APIClient {
	return &APIClient{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		backoff: time.Second,
	}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	req := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   recommendationMaxTokens,
		Temperature: param.NewOpt(0.4),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	msg, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("recommendation response from %s had no text", c.model)
	}
	return &LLMResponse{
		Content:      text.String(),
		PromptTokens: int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// send retries rate limits and server errors with doubling backoff.
func (c *APIClient) send(ctx context.Context, req anthropic.MessageNewParams) (*anthropic.Message, error) {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		msg, err := c.client.Messages.New(ctx, req)
		if err == nil {
			return msg, nil
		}
		if attempt == maxCallAttempts || !retryable(err) {
			return nil, fmt.Errorf("anthropic messages call (attempt %d): %w", attempt, err)
		}
		log.Printf("[recommendation] attempt %d failed, retrying in %v: %v", attempt, wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func retryable(err error) bool {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		// Transport failures carry no status.
		return true
	}
	return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
}

// ── MockClient: local development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      mockQuestionsJSON,
		PromptTokens: len(userPrompt) / 4,
		OutputTokens: len(mockQuestionsJSON) / 4,
	}, nil
}

const mockQuestionsJSON = `[
  {
    "text": "[Mock] What is 3/4 expressed as a decimal?",
    "difficulty": "easy",
    "tags": ["fractions", "decimals"],
    "choices": [{"text": "0.75", "is_correct": true}, {"text": "0.34", "is_correct": false}, {"text": "1.33", "is_correct": false}],
    "solution": {"explanation": "Divide 3 by 4.", "steps": ["3 ÷ 4 = 0.75"]},
    "hint": "Divide the numerator by the denominator.",
    "metadata": {"created_by": "mock", "time_estimate": {"minutes": "2"}}
  },
  {
    "text": "[Mock] Simplify 18/24.",
    "difficulty": "medium",
    "tags": ["fractions", "simplification"],
    "choices": [{"text": "3/4", "is_correct": true}, {"text": "2/3", "is_correct": false}, {"text": "9/12", "is_correct": false}],
    "solution": {"explanation": "The greatest common divisor is 6.", "steps": ["18 ÷ 6 = 3", "24 ÷ 6 = 4"]},
    "hint": "Find the greatest common divisor.",
    "metadata": {"created_by": "mock", "time_estimate": {"minutes": "3"}}
  },
  {
    "text": "[Mock] Solve for x: 2/3 of x is 14.",
    "difficulty": "hard",
    "tags": ["fractions", "equations"],
    "choices": [{"text": "21", "is_correct": true}, {"text": "9.33", "is_correct": false}, {"text": "28", "is_correct": false}],
    "solution": {"explanation": "Multiply both sides by 3/2.", "steps": ["x = 14 × 3/2", "x = 21"]},
    "hint": "Undo the multiplication by 2/3.",
    "metadata": {"created_by": "mock", "time_estimate": {"minutes": "4"}}
  }
]`
