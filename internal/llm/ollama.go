package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zenith/internal/advisor"
	"zenith/internal/log"
)

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Stream  bool           `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p,omitempty"`
}

type ollamaChunk struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// Ollama streams completions from an Ollama server's /api/generate.
type Ollama struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
}

func NewOllama(baseURL, model string, timeout time.Duration, logger *log.Logger) *Ollama {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.WithComponent(log.ComponentLLM),
	}
}

func (o *Ollama) Name() string { return "ollama" }

// Available reports whether the server is reachable and has the configured
// model pulled.
func (o *Ollama) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.WarnContext(ctx, "Ollama not reachable", log.FieldError, err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}
	for _, m := range tags.Models {
		if m.Name == o.model || m.Model == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			return true
		}
	}
	o.logger.WarnContext(ctx, "Ollama model not pulled", "model", o.model)
	return false
}

// GenerateStream starts a streaming completion. The request stays open
// until the returned stream is drained or closed.
func (o *Ollama) GenerateStream(ctx context.Context, prompt string, opts advisor.GenerateOptions) (advisor.TokenStream, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:  o.model,
		Prompt: prompt,
		System: opts.SystemPrompt,
		Stream: true,
		Options: &ollamaOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	// tie the Ollama timeout to the caller's context
	ctx, cancel := context.WithTimeout(ctx, o.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ollama API connection error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	o.logger.DebugContext(ctx, "Ollama stream started", log.FieldOperation, log.OpGenerate, "model", o.model)
	return &ollamaStream{body: resp.Body, dec: json.NewDecoder(resp.Body), cancel: cancel}, nil
}

// ollamaStream decodes the newline-delimited JSON chunks of a streaming
// response.
type ollamaStream struct {
	body   io.ReadCloser
	dec    *json.Decoder
	cancel context.CancelFunc
	done   bool
}

func (s *ollamaStream) Recv() (string, error) {
	for !s.done {
		var chunk ollamaChunk
		if err := s.dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("failed to decode ollama chunk: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		s.done = chunk.Done
		if chunk.Response != "" {
			return chunk.Response, nil
		}
	}
	return "", io.EOF
}

func (s *ollamaStream) Close() error {
	s.cancel()
	return s.body.Close()
}
