// Package recommendation asks an LLM for the next question set of a user
// who failed one or more difficulty levels.
package recommendation

import (
	"context"
	"fmt"
	"log"

	"github.com/edu-vault/backend/internal/models"
)

type Recommender struct {
	llm   LLMClient
	model string
}

// Config selects the backend: the mock client, or the Anthropic API.
type Config struct {
	Mock   bool
	APIKey string
	Model  string
}

func NewRecommender(cfg Config) *Recommender {
	if cfg.Mock || cfg.APIKey == "" {
		log.Println("Recommender using mock data")
		return &Recommender{llm: NewMockClient(), model: "mock"}
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	log.Println("Recommender using Anthropic API:", model)
	return &Recommender{llm: NewAPIClient(cfg.APIKey, model), model: model}
}

// NewWithClient wraps an existing client.
func NewWithClient(llm LLMClient, model string) *Recommender {
	return &Recommender{llm: llm, model: model}
}

func (r *Recommender) ModelName() string {
	return r.model
}

func (r *Recommender) Recommend(ctx context.Context, req Request) (*models.Recommendation, error) {
	if req.Rule == nil {
		return nil, fmt.Errorf("%w: recommendation request without a learning rule", models.ErrValidation)
	}

	resp, err := r.llm.Generate(ctx, SystemPrompt(), BuildUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate recommendations for %s: %w", req.Rule.Mode, err)
	}

	questions, err := ParseResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("parse recommendations for %s: %w", req.Rule.Mode, err)
	}

	return &models.Recommendation{
		Questions:    questions,
		Model:        r.model,
		PromptTokens: resp.PromptTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
