package advisor

import (
	"context"
	"errors"
	"io"
	"runtime"
	"strings"
)

// DefaultYieldEvery is how many tokens Consume handles before yielding the
// processor to other goroutines.
const DefaultYieldEvery = 8

// GenerateOptions are the sampling parameters passed to a Generator.
type GenerateOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	TopP         float32
}

// TokenStream yields generated text fragments. Recv returns io.EOF once the
// model has finished.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces a token stream for a prompt.
type Generator interface {
	GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (TokenStream, error)
}

// Availability reports whether a model is ready to serve requests.
type Availability interface {
	Available(ctx context.Context) bool
}

// Consume drains stream, forwarding each token to onToken (which may be
// nil) and returning the assembled text. Every yieldEvery tokens it gives
// up the processor. Cancelling ctx stops consumption and returns the text
// collected so far together with ctx.Err().
func Consume(ctx context.Context, stream TokenStream, yieldEvery int, onToken func(string)) (string, error) {
	defer stream.Close()

	var b strings.Builder
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return b.String(), err
		}

		tok, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}

		b.WriteString(tok)
		if onToken != nil {
			onToken(tok)
		}

		n++
		if yieldEvery > 0 && n%yieldEvery == 0 {
			runtime.Gosched()
		}
	}
}
