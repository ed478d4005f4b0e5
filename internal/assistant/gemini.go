// Package assistant calls a hosted language model for help-desk answers.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrEmptyAnswer is returned when the model responds without any text.
var ErrEmptyAnswer = errors.New("model returned no text")

// GeminiClient talks to the Gemini generateContent endpoint.
type GeminiClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewGeminiClient builds a client. It returns nil when no API key is configured.
func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.APIKey == "" {
		return nil
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &GeminiClient{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		model:    opts.Model,
		apiKey:   opts.APIKey,
		client:   client,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Answer sends the system prompt and question and returns the first candidate's text.
func (g *GeminiClient) Answer(ctx context.Context, systemPrompt, question string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: systemPrompt + "\n\nUser: " + question}}}},
		GenerationConfig: generationConfig{
			Temperature:     0.7,
			MaxOutputTokens: 500,
		},
	})
	if err != nil {
		return "", err
	}

	target := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// url.Error repeats the target, which carries the key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return "", fmt.Errorf("gemini request: %w", uerr.Err)
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyAnswer
	}
	text := strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}
