// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/litscout/internal/httputil"
)

// LocalBackend calls a local OpenAI-compatible chat completions server
// (Ollama, LM Studio, llama.cpp). Endpoint is the server base URL, e.g.
// "http://localhost:11434/v1".
type LocalBackend struct {
	Endpoint string
	Model    string
	Client   *http.Client
}

type chatRequest struct {
	Model          string        `json:"model,omitempty"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
	Stream         bool          `json:"stream"`
}

type chatMessage struct {
	Role    string     `json:"role"`
	Content []chatPart `json:"content"`
}

type chatPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts req to <Endpoint>/chat/completions.
func (l *LocalBackend) Complete(ctx context.Context, req Request) (string, error) {
	parts := []chatPart{{Type: "text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		uri := "data:" + req.imageMIME() + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
		parts = append(parts, chatPart{Type: "image_url", ImageURL: &chatImageURL{URL: uri}})
	}
	body := chatRequest{
		Model:     l.Model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: req.maxTokens(),
	}
	if req.JSON {
		body.ResponseFormat = &chatFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	endpoint := strings.TrimSuffix(l.Endpoint, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, httpReq, 0, nil)
	if err != nil {
		return "", fmt.Errorf("calling local LLM at %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("local LLM returned %d: %s", resp.StatusCode, string(msg))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decoding local LLM response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", ErrEmpty
	}
	return cr.Choices[0].Message.Content, nil
}
