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

	"github.com/Jacbdias/MembrosFatosdaBolsa-sub005/internal/domain"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	maxRetries        = 3
	initialRetryDelay = 1 * time.Second
	// maxSourceRunes bounds the report text sent in one prompt.
	maxSourceRunes = 60000
)

var (
	ErrNoAPIKey    = errors.New("openai api key not configured")
	ErrEmptySource = errors.New("report text is empty")
)

const reportSystemPrompt = `Você é um analista da Fatos da Bolsa. Receberá o texto extraído de um relatório semanal em PDF.
Responda somente com um objeto JSON no formato:
{"summary": "resumo em até 3 parágrafos", "sections": [{"title": "título", "content": "texto em markdown", "tickers": ["PETR4"]}]}
Use os tickers exatamente como aparecem no texto, em maiúsculas. Não invente dados que não estejam no texto.`

// GeneratedReport is the structured output of a report generation call.
type GeneratedReport struct {
	Summary  string                 `json:"summary"`
	Sections []domain.ReportSection `json:"sections"`
}

// ReportGenerator turns raw report text into a summary and sections.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, text string) (*GeneratedReport, error)
}

// Client calls the OpenAI chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	client     *http.Client
	retryDelay time.Duration
}

func NewClient(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		client:     &http.Client{Timeout: 2 * time.Minute},
		retryDelay: initialRetryDelay,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *Client) GenerateReport(ctx context.Context, text string) (*GeneratedReport, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySource
	}
	if r := []rune(text); len(r) > maxSourceRunes {
		text = string(r[:maxSourceRunes])
	}

	content, err := c.complete(ctx, []chatMessage{
		{Role: "system", Content: reportSystemPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return nil, err
	}
	return ParseReport(content)
}

// ParseReport decodes the model's JSON answer, tolerating a surrounding markdown code fence.
func ParseReport(content string) (*GeneratedReport, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out GeneratedReport
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return nil, fmt.Errorf("decode generated report: %w", err)
	}
	out.Summary = strings.TrimSpace(out.Summary)
	sections := out.Sections[:0]
	for _, s := range out.Sections {
		s.Title = strings.TrimSpace(s.Title)
		s.Content = strings.TrimSpace(s.Content)
		if s.Title == "" && s.Content == "" {
			continue
		}
		for i, t := range s.Tickers {
			s.Tickers[i] = strings.ToUpper(strings.TrimSpace(t))
		}
		sections = append(sections, s)
	}
	out.Sections = sections
	if out.Summary == "" && len(out.Sections) == 0 {
		return nil, fmt.Errorf("generated report is empty")
	}
	return &out, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    0.2,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// 1s, 2s, 4s...
			delay := c.retryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create chat request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("chat request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read chat response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr openaiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("openai api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("openai api error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var parsed chatResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("openai returned no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

var _ ReportGenerator = (*Client)(nil)
