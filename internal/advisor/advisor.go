// Package advisor answers free-form spending questions. Deterministic
// figures come from the analytics snapshot; a language model only phrases
// them, and its output is checked before it reaches the user.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"zenith/internal/core"
	"zenith/internal/log"
)

const (
	ModelUnavailableReply = "❌ Model not loaded! Please download the LLM model first."

	tipModelUnavailable = "💡 Download the model to get personalized tips!"
	tipNoData           = "💡 Start logging expenses to receive personalized tips."
	tipFailed           = "💡 Keep tracking your expenses consistently for better insights."
)

// RecentSource lists transactions newest first.
type RecentSource interface {
	All() []core.Transaction
}

// Options tune generation. Zero values take the defaults.
type Options struct {
	CurrencySymbol string
	YieldEvery     int
	MaxTokens      int
	TipMaxTokens   int
}

func (o Options) withDefaults() Options {
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = DefaultCurrencySymbol
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = DefaultYieldEvery
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 150
	}
	if o.TipMaxTokens <= 0 {
		o.TipMaxTokens = 60
	}
	return o
}

// Advisor produces advice and tips. It owns no state beyond its
// collaborators and is safe for concurrent use.
type Advisor struct {
	resolver  *Resolver
	recent    RecentSource
	generator Generator
	model     Availability
	guard     *ArithmeticGuard
	format    Formatter
	opts      Options
	logger    *log.Logger
}

func New(resolver *Resolver, recent RecentSource, generator Generator, model Availability, opts Options, logger *log.Logger) *Advisor {
	opts = opts.withDefaults()
	return &Advisor{
		resolver:  resolver,
		recent:    recent,
		generator: generator,
		model:     model,
		guard:     NewArithmeticGuard(opts.CurrencySymbol),
		format:    Formatter{Symbol: opts.CurrencySymbol},
		opts:      opts,
		logger:    logger.WithComponent(log.ComponentAdvisor),
	}
}

func (a *Advisor) available(ctx context.Context) bool {
	return a.generator != nil && a.model != nil && a.model.Available(ctx)
}

// Advice answers question. Tokens are forwarded to onToken as the model
// produces them; the returned string is the final, validated answer. Advice
// never fails: every error is folded into a user-facing message.
func (a *Advisor) Advice(ctx context.Context, question string, onToken func(string)) string {
	if !a.available(ctx) {
		return emit(onToken, ModelUnavailableReply)
	}

	res, err := a.resolver.Resolve(ctx, question)
	if err != nil {
		return a.adviceError(ctx, err)
	}
	if res.Answered() {
		return emit(onToken, res.Reply)
	}

	snap := res.Snapshot
	prompt := a.advicePrompt(question, snap, a.recent.All(), res.Fact)

	stream, err := a.generator.GenerateStream(ctx, prompt, GenerateOptions{
		SystemPrompt: a.systemPrompt(),
		MaxTokens:    a.opts.MaxTokens,
		Temperature:  0.1,
		TopP:         0.9,
	})
	if err != nil {
		return a.adviceError(ctx, err)
	}

	text, err := Consume(ctx, stream, a.opts.YieldEvery, onToken)
	if err != nil {
		return a.adviceError(ctx, err)
	}

	s := snap.Last30Days
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Sprintf("💰 Your total spending in the last 30 days is %s across %d transactions.",
			a.format.Money(s.Total), s.Count)
	}
	if a.guard.Suspicious(text) {
		a.logger.WarnContext(ctx, "Generated answer contains arithmetic, replacing",
			log.FieldIntent, res.Intent.String())
		return fmt.Sprintf("💰 Your total spending in the last 30 days is %s across %d transactions, averaging %s each.",
			a.format.Money(s.Total), s.Count, a.format.Money(s.Avg))
	}
	return text
}

// emit forwards a canned reply to the token callback so streaming callers
// see it too.
func emit(onToken func(string), msg string) string {
	if onToken != nil {
		onToken(msg)
	}
	return msg
}

func (a *Advisor) adviceError(ctx context.Context, err error) string {
	a.logger.LogError(ctx, "Advice generation failed", err, log.OpAdvise, nil)
	return fmt.Sprintf("⚠️ AI Error: %s. Please try again.", err.Error())
}

// Tip returns a one-line money-saving suggestion.
func (a *Advisor) Tip(ctx context.Context) string {
	if !a.available(ctx) {
		return tipModelUnavailable
	}

	snap, err := a.resolver.Snapshot(ctx)
	if err != nil {
		a.logger.LogError(ctx, "Failed to get snapshot for tip", err, log.OpAdvise, nil)
		return tipFailed
	}
	if snap.TransactionCount == 0 {
		return tipNoData
	}

	stream, err := a.generator.GenerateStream(ctx, a.tipPrompt(snap), GenerateOptions{
		MaxTokens:   a.opts.TipMaxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		a.logger.LogError(ctx, "Tip generation failed", err, log.OpGenerate, nil)
		return tipFailed
	}
	text, err := Consume(ctx, stream, a.opts.YieldEvery, nil)
	if err != nil {
		a.logger.LogError(ctx, "Tip generation failed", err, log.OpGenerate, nil)
		return tipFailed
	}

	if text = strings.TrimSpace(text); text != "" {
		return text
	}
	name, amount := "unknown", a.format.Money(decimal.Zero)
	if len(snap.Categories) > 0 {
		name = string(snap.Categories[0].Category)
		amount = a.format.Money(snap.Categories[0].Amount)
	}
	return fmt.Sprintf("💡 Your top spending is %s at %s — consider setting a weekly budget.", name, amount)
}
