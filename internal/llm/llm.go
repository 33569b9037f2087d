// Package llm wraps the Gemini API behind two calls: schema-validated
// structured generation with bounded retry, and plain text generation.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

// DefaultModel is used when neither the caller nor configuration names one.
const DefaultModel = "gemini-2.0-flash"

// defaultTemperature keeps structured verdicts close to deterministic.
const defaultTemperature = float32(0.3)

// maxAttempts is the total number of tries for a structured call.
const maxAttempts = 3

// Options tune a single generation call.
type Options struct {
	Temperature float32 // 0 means the package default (0.3)
	Model       string  // empty means the client's model
	MaxTokens   int32   // 0 means the provider default
}

// Client is a Gemini client. All AI-assisted phases route through it.
type Client struct {
	modelName string
	gClient   *genai.Client
}

// NewClient creates an LLM client. The API key is read from GEMINI_API_KEY
// (preferred) or the gemini.api_key configuration value.
func NewClient(ctx context.Context, modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = viper.GetString("gemini.api_key")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or gemini.api_key in the config file")
	}

	if modelName == "" {
		modelName = viper.GetString("gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: modelName, gClient: gClient}, nil
}

// ModelName returns the model this client generates with by default.
func (c *Client) ModelName() string {
	return c.modelName
}

// GenerateStructured sends userPrompt under systemPrompt, requires the
// response to be JSON matching schema, validates it, and unmarshals it into
// out. It retries up to 3 attempts total with exponential backoff (1s, 2s,
// 4s) on any failure: network, non-JSON payload, or schema violation.
// Nothing is written to out until a response has passed validation.
func (c *Client) GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema, out any, opts Options) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, Backoff(attempt)); err != nil {
				return err
			}
		}

		raw, err := c.generate(ctx, systemPrompt, userPrompt, schema, opts)
		if err != nil {
			lastErr = err
			continue
		}

		var payload any
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			lastErr = fmt.Errorf("response is not valid JSON: %w", err)
			continue
		}

		if err := Validate(schema, payload); err != nil {
			lastErr = fmt.Errorf("response violates schema: %w", err)
			continue
		}

		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = fmt.Errorf("failed to decode validated response: %w", err)
			continue
		}

		return nil
	}

	return fmt.Errorf("gemini call failed after %d attempts: %w", maxAttempts, lastErr)
}

// GenerateText sends a plain-text generation request. No schema, no retry.
func (c *Client) GenerateText(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	return c.generate(ctx, systemPrompt, userPrompt, nil, opts)
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, schema *genai.Schema, opts Options) (string, error) {
	model := c.modelName
	if opts.Model != "" {
		model = opts.Model
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		}
	}
	if opts.MaxTokens > 0 {
		config.MaxOutputTokens = opts.MaxTokens
	}
	if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: userPrompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return text, nil
}

// Backoff returns the delay before retry attempt n (1-based): 1s, 2s, 4s.
func Backoff(attempt int) time.Duration {
	return time.Second << (attempt - 1)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
