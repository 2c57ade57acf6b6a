package narration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/andreokosmidhs-spec/dnd-ai-clean/internal/config"
)

// MessageCreator is the subset of the Anthropic messages API used here.
type MessageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicNarrator asks a Claude model for narration.
type AnthropicNarrator struct {
	messages  MessageCreator
	model     string
	maxTokens int64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnthropicNarrator builds a narrator from cfg. Retries are disabled; the
// caller falls back to a template instead.
//
// Precondition: cfg.APIKey and cfg.Model are non-empty.
func NewAnthropicNarrator(cfg config.NarrationConfig, logger *zap.Logger) *AnthropicNarrator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicNarratorWithClient(&client.Messages, cfg, logger)
}

// NewAnthropicNarratorWithClient builds a narrator around an existing messages client.
func NewAnthropicNarratorWithClient(messages MessageCreator, cfg config.NarrationConfig, logger *zap.Logger) *AnthropicNarrator {
	return &AnthropicNarrator{
		messages:  messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Narrate sends req to the model and returns its text trimmed to the mode's budget.
//
// Postcondition: a non-nil error is returned when the call fails, times out,
// returns no text, or the text contradicts req.Summaries.
func (n *AnthropicNarrator) Narrate(ctx context.Context, req Request) (string, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	facts, err := json.Marshal(promptFacts(req))
	if err != nil {
		return "", fmt.Errorf("encoding narration facts: %w", err)
	}

	start := time.Now()
	msg, err := n.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(n.model),
		MaxTokens: n.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(req)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(facts))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("requesting narration: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := Truncate(b.String(), BudgetFor(req.Mode).Max)
	if err := Check(text, req); err != nil {
		return "", err
	}
	n.logger.Debug("narration generated",
		zap.String("mode", string(req.Mode)),
		zap.Int("sentences", len(Sentences(text))),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func systemPrompt(req Request) string {
	b := BudgetFor(req.Mode)
	var sb strings.Builder
	sb.WriteString("You are the narrator of a tabletop role-playing game. ")
	sb.WriteString("The JSON you receive is authoritative game state: never change hits, misses, damage, hit points, deaths, or who is unconscious. ")
	sb.WriteString("Do not invent dialogue for protected characters and do not state numbers the facts do not contain. ")
	fmt.Fprintf(&sb, "Write between %d and %d sentences in second person. ", b.Min, b.Max)
	if req.Pacing.Phase != "" {
		fmt.Fprintf(&sb, "Scene phase: %s. Guidance: %s Style: %s.", req.Pacing.Phase, req.Pacing.DMGuidance, req.Pacing.NarrationStyle)
	}
	return sb.String()
}

type factSheet struct {
	Mode          Mode     `json:"mode"`
	Character     string   `json:"character,omitempty"`
	Location      string   `json:"location,omitempty"`
	Action        string   `json:"action,omitempty"`
	Outcomes      any      `json:"outcomes,omitempty"`
	Notes         []string `json:"notes,omitempty"`
	Clarification string   `json:"clarification,omitempty"`
}

func promptFacts(req Request) factSheet {
	fs := factSheet{
		Mode:          req.Mode,
		Character:     req.Character,
		Location:      req.Location,
		Action:        req.ActionText,
		Notes:         req.Facts,
		Clarification: req.Clarification,
	}
	if len(req.Summaries) > 0 {
		fs.Outcomes = req.Summaries
	}
	return fs
}
