package ai

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
)

// ReplyGenerator produces the automated holding reply sent when no admin
// answers within the grace period.
type ReplyGenerator interface {
	Generate(ctx context.Context, userText, emotion string) (string, error)
}

type OpenRouterGenerator struct {
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
	Client  *http.Client
}

type openRouterMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterChatReq struct {
	Model       string          `json:"model"`
	Messages    []openRouterMsg `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openRouterChatResp struct {
	Choices []struct {
		Message openRouterMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenRouterGenerator(baseURL, apiKey, model, siteURL, appName string) *OpenRouterGenerator {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	return &OpenRouterGenerator{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

const generatorSystemPrompt = "You are an empathetic assistant."

func generatorUserPrompt(userText, emotion string) string {
	return fmt.Sprintf(
		"A user wrote: %q.\nThe predicted emotion is %q.\n"+
			"Reply in a consoling, human-like way that tries to address their concern before the admin comes online.\n"+
			"Keep it short, friendly, and empathetic.",
		userText, emotion,
	)
}

func (g *OpenRouterGenerator) Generate(ctx context.Context, userText, emotion string) (string, error) {
	if g.Client == nil {
		return "", errors.New("openrouter: http client is nil")
	}
	if strings.TrimSpace(g.APIKey) == "" {
		return "", errors.New("openrouter: api key is required")
	}
	model := strings.TrimSpace(g.Model)
	if model == "" {
		return "", errors.New("openrouter: model is required")
	}

	reqBody := openRouterChatReq{
		Model:       model,
		MaxTokens:   80,
		Temperature: 0.7,
		Messages: []openRouterMsg{
			{Role: "system", Content: generatorSystemPrompt},
			{Role: "user", Content: generatorUserPrompt(userText, emotion)},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(g.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	if g.SiteURL != "" {
		req.Header.Set("HTTP-Referer", g.SiteURL)
	}
	if g.AppName != "" {
		req.Header.Set("X-Title", g.AppName)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("openrouter: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded openRouterChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("openrouter: empty choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}
