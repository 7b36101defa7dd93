package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// openAIClient implements Client using OpenAI-compatible Chat
// Completions with image content parts.
type openAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

type openAIChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) AnalyzeScreenshot(ctx context.Context, req Request) (Result, error) {
	mime, b64 := encodeImage(req)

	body := openAIChatRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []openAIMessage{
			{
				Role: "user",
				Content: []openAIContent{
					{Type: "text", Text: BuildPrompt(req)},
					{Type: "image_url", ImageURL: &openAIImageURL{
						URL: fmt.Sprintf("data:%s;base64,%s", mime, b64),
					}},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("openai chat completion failed with status %d", resp.StatusCode)
	}

	var parsed openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, err
	}
	if len(parsed.Choices) == 0 {
		return Result{}, errors.New("openai chat completion returned no choices")
	}
	return Result{Text: parsed.Choices[0].Message.Content}, nil
}

// anthropicClient implements Client using Anthropic's Messages API
// with base64 image blocks.
type anthropicClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *anthropicImageSource `json:"source,omitempty"`
}

type anthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *anthropicClient) AnalyzeScreenshot(ctx context.Context, req Request) (Result, error) {
	mime, b64 := encodeImage(req)

	body := anthropicMessagesRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{Type: "image", Source: &anthropicImageSource{
						Type:      "base64",
						MediaType: mime,
						Data:      b64,
					}},
					{Type: "text", Text: BuildPrompt(req)},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}

	endpoint := c.baseURL
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	endpoint = strings.TrimRight(endpoint, "/") + "/v1/messages"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("anthropic messages request failed with status %d", resp.StatusCode)
	}

	var parsed anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, err
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return Result{Text: block.Text}, nil
		}
	}
	return Result{}, errors.New("anthropic messages returned no text content")
}

// googleClient implements Client using Gemini's generateContent with
// inline image data.
type googleClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

type googleGenerateContentRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *googleInlineData `json:"inline_data,omitempty"`
}

type googleInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type googleGenerateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *googleClient) AnalyzeScreenshot(ctx context.Context, req Request) (Result, error) {
	mime, b64 := encodeImage(req)

	body := googleGenerateContentRequest{
		Contents: []googleContent{
			{
				Parts: []googlePart{
					{InlineData: &googleInlineData{MimeType: mime, Data: b64}},
					{Text: BuildPrompt(req)},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{}, err
	}

	base := c.baseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(base, "/"), c.model, url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("google generateContent failed with status %d", resp.StatusCode)
	}

	var parsed googleGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return Result{}, errors.New("google generateContent returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return Result{Text: sb.String()}, nil
}
