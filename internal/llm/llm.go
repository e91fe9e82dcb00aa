package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/harness"
)

// Client wraps the Anthropic API for message classification and phrase expansion.
type Client struct {
	api      *anthropic.Client
	model    anthropic.Model
	limiter  *rate.Limiter
	complete func(ctx context.Context, system, user string, maxTokens int64) (string, error)
}

// NewClient creates an LLM client with the given API key and model. Calls are
// limited to ratePerSec requests per second; zero or less means unlimited.
func NewClient(apiKey, model string, ratePerSec float64) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	c := &Client{
		api:     &client,
		model:   anthropic.Model(model),
		limiter: newLimiter(ratePerSec),
	}
	c.complete = c.callAPI
	return c
}

func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

func (c *Client) callAPI(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

func (c *Client) ask(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return c.complete(ctx, system, user, maxTokens)
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// --- Classification ---

// buildClassifyPrompt constructs the system and user prompts for classifying a message.
func buildClassifyPrompt(message string, candidates []harness.Candidate) (system string, user string) {
	system = `You route user messages for a conversational assistant. Pick the single best handler and intent for the message from the candidate list. Return ONLY a JSON object with these fields:
- "handler": the chosen handler name, copied exactly from the candidates
- "intent": the chosen intent name, copied exactly from the candidates
- "confidence": a number between 0 and 1
- "reason": one short sentence explaining the choice

Rules:
- Never invent a handler or intent that is not in the candidate list
- If nothing fits, return the closest candidate with a low confidence
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Candidates:\n")
	if len(candidates) == 0 {
		sb.WriteString("- (none configured)\n")
	}
	for _, c := range candidates {
		sb.WriteString("- handler: ")
		sb.WriteString(c.Handler)
		sb.WriteString(", intent: ")
		sb.WriteString(c.Intent)
		sb.WriteString("\n")
	}
	sb.WriteString("\nMessage:\n")
	sb.WriteString(message)
	user = sb.String()
	return
}

type classification struct {
	Handler    string  `json:"handler"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func parseClassification(text string) (*classification, error) {
	text = stripFences(text)
	var c classification
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if c.Handler == "" {
		return nil, fmt.Errorf("LLM response has no handler")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return nil, fmt.Errorf("LLM confidence %v out of range", c.Confidence)
	}
	return &c, nil
}

// Classify implements harness.Classifier.
func (c *Client) Classify(ctx context.Context, message string, candidates []harness.Candidate) (*harness.ClassifierResult, error) {
	systemPrompt, userPrompt := buildClassifyPrompt(message, candidates)
	text, err := c.ask(ctx, systemPrompt, userPrompt, 512)
	if err != nil {
		return nil, err
	}
	parsed, err := parseClassification(text)
	if err != nil {
		return nil, err
	}
	return &harness.ClassifierResult{
		Handler:    parsed.Handler,
		Intent:     parsed.Intent,
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
		Model:      string(c.model),
	}, nil
}

// --- Phrase expansion ---

// buildPhrasePrompt constructs the prompts for expanding example phrases.
func buildPhrasePrompt(phrases []string, intent, kind string) (system string, user string) {
	system = `You help maintain intent-matching patterns. Given example phrases for an intent, return ONLY a JSON object with one field:
- "phrases": an array of short lowercase phrases users are likely to type for the same intent, including the originals

Rules:
- Keep each phrase under six words
- Prefer distinctive wording over generic words that would match unrelated messages
- At most 12 phrases
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Intent: ")
	sb.WriteString(intent)
	sb.WriteString("\n")
	if kind != "" {
		sb.WriteString("Pattern kind: ")
		sb.WriteString(kind)
		sb.WriteString("\n")
	}
	sb.WriteString("\nExamples:\n")
	for _, p := range phrases {
		sb.WriteString("- ")
		sb.WriteString(p)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

func parsePhraseExpansion(text string) ([]string, error) {
	text = stripFences(text)
	var out struct {
		Phrases []string `json:"phrases"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return out.Phrases, nil
}

// SuggestFromPhrases implements compiler.PhraseSuggester. The model only
// proposes extra phrases; the expression is still compiled deterministically
// from the combined list, so it can be regenerated from the stored phrases.
func (c *Client) SuggestFromPhrases(ctx context.Context, phrases []string, intent, kind string) (compiler.PhraseResult, error) {
	systemPrompt, userPrompt := buildPhrasePrompt(phrases, intent, kind)
	text, err := c.ask(ctx, systemPrompt, userPrompt, 1024)
	if err != nil {
		return compiler.PhraseResult{}, err
	}
	extra, err := parsePhraseExpansion(text)
	if err != nil {
		return compiler.PhraseResult{}, err
	}

	combined := append(append([]string{}, phrases...), extra...)
	res := compiler.CompileFromPhrases(combined, intent, kind)
	if res.Expression != "" && len(extra) > 0 {
		res.Explanation += fmt.Sprintf("; %d phrase(s) proposed by %s", len(extra), c.model)
	}
	return res, nil
}
