package tokens

import (
	"encoding/json"
	"fmt"
)

// Config configures the estimator.
type Config struct {
	// CharsPerToken is the character-to-token ratio used for text.
	// Zero means the default of 4.0.
	CharsPerToken float64 `yaml:"chars_per_token"`

	// DefaultCompletionTokens is assumed for requests that don't set
	// max_tokens. Zero means the default of 256.
	DefaultCompletionTokens int64 `yaml:"default_completion_tokens"`
}

const (
	defaultCharsPerToken           = 4.0
	defaultCompletionTokens        = 256
	perMessageOverheadTokens int64 = 4
)

// Estimate is the token estimate for one request.
type Estimate struct {
	// Model is the raw model string from the request body.
	Model string

	// PromptTokens is the estimated prompt size.
	PromptTokens int64

	// CompletionTokens is max_tokens if the request set it, otherwise
	// the configured default.
	CompletionTokens int64

	// TotalTokens is PromptTokens + CompletionTokens. This is the
	// figure admission control checks against.
	TotalTokens int64
}

// ChatRequest is the subset of a chat completion body the estimator
// reads. Unknown fields are ignored.
type ChatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int64     `json:"max_tokens"`
}

// Message is one chat message. Content may be a plain string or an
// array of typed content parts.
type Message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// Estimator performs character-ratio token estimation. It is stateless
// after construction and safe for concurrent use.
type Estimator struct {
	charsPerToken    float64
	completionTokens int64
}

// NewEstimator creates an estimator from config, applying defaults for
// zero values.
func NewEstimator(cfg Config) *Estimator {
	charsPerToken := cfg.CharsPerToken
	if charsPerToken <= 0 {
		charsPerToken = defaultCharsPerToken
	}

	completionTokens := cfg.DefaultCompletionTokens
	if completionTokens <= 0 {
		completionTokens = defaultCompletionTokens
	}

	return &Estimator{
		charsPerToken:    charsPerToken,
		completionTokens: completionTokens,
	}
}

// EstimateText estimates tokens for a single text string. Non-empty
// text is at least one token.
func (e *Estimator) EstimateText(text string) int64 {
	if text == "" {
		return 0
	}

	tokens := int64(float64(len(text))/e.charsPerToken + 0.5)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateRequest parses a chat completion body and estimates its total
// token usage. A body that isn't valid JSON or has no messages is an
// error; the caller decides how to admit unparseable traffic.
func (e *Estimator) EstimateRequest(body []byte) (*Estimate, error) {
	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request body: %w", err)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("request has no messages")
	}

	var prompt int64
	for _, msg := range req.Messages {
		prompt += perMessageOverheadTokens
		prompt += e.EstimateText(msg.Role)
		prompt += e.EstimateText(contentText(msg.Content))
	}

	completion := req.MaxTokens
	if completion <= 0 {
		completion = e.completionTokens
	}

	return &Estimate{
		Model:            req.Model,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}, nil
}

// contentText flattens a message content field to plain text. String
// content is returned as-is; array content concatenates the text parts.
// Anything else counts its raw JSON length, which over-estimates
// slightly rather than ignoring the content.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var out string
		for _, p := range parts {
			out += p.Text
		}
		return out
	}

	return string(raw)
}
