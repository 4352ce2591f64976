// Package llm is the narrow client for the external language service. It is
// consulted only when the local heuristics are inconclusive, and every failure
// mode (transport error, malformed payload, missing credentials, timeout)
// degrades to a "no answer" result at the call site.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// ErrUnavailable marks every degraded outcome: no provider configured,
// transport failure, timeout, or an unparseable response. Callers treat it as
// a miss, never as a fatal error.
var ErrUnavailable = errors.New("semantic service unavailable")

// PlaceJudgment is the service's verdict on whether free text plausibly names
// a physical place at the property.
type PlaceJudgment struct {
	IsPlace    bool    `json:"is_place"`
	Canonical  string  `json:"canonical"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// DeptOption describes one allowed answer for constrained classification.
type DeptOption struct {
	Code  string
	Label string
	Hints string
}

// DeptJudgment is the service's department pick, constrained to the closed
// set handed to it. Code is empty when the service declines to answer.
type DeptJudgment struct {
	Code       string  `json:"department"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Usage accumulates token counts across calls.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Calls        int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Client is what the resolver and detector depend on. Inject Disabled{} in
// tests or when no provider is configured.
type Client interface {
	ValidatePlace(ctx context.Context, text, property string) (PlaceJudgment, error)
	ClassifyDepartment(ctx context.Context, text string, options []DeptOption) (DeptJudgment, error)
}

// Disabled is the always-unavailable Client.
type Disabled struct{}

func (Disabled) ValidatePlace(context.Context, string, string) (PlaceJudgment, error) {
	return PlaceJudgment{}, ErrUnavailable
}

func (Disabled) ClassifyDepartment(context.Context, string, []DeptOption) (DeptJudgment, error) {
	return DeptJudgment{}, ErrUnavailable
}

// Service talks to Anthropic or an OpenAI-compatible endpoint, whichever is
// configured. One bounded timeout per call; no retries.
type Service struct {
	provider        string
	model           string
	anthropicAPIKey string
	openAIAPIKey    string
	timeout         time.Duration
	httpClient      *http.Client

	mu    sync.Mutex
	usage Usage
}

type Options struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	Timeout         time.Duration
}

// New builds a Service, or Disabled{} when no provider is configured.
func New(opts Options) Client {
	if opts.Provider == "" {
		return Disabled{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Service{
		provider:        opts.Provider,
		model:           opts.Model,
		anthropicAPIKey: opts.AnthropicAPIKey,
		openAIAPIKey:    opts.OpenAIAPIKey,
		timeout:         timeout,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// Usage returns cumulative token usage.
func (s *Service) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *Service) addUsage(in, out int64) {
	s.mu.Lock()
	s.usage.InputTokens += in
	s.usage.OutputTokens += out
	s.usage.Calls++
	s.mu.Unlock()
}

func (s *Service) ValidatePlace(ctx context.Context, text, property string) (PlaceJudgment, error) {
	systemPrompt := fmt.Sprintf(`You judge whether a short Spanish phrase plausibly names a physical place inside the property "%s" (rooms, villas, kitchens, pools, gardens, corridors, machine rooms...).
It is NOT a place if it describes a problem, a person, a time, or an object with no location.

Respond with JSON only (no markdown):
{"is_place": true, "canonical": "short cleaned-up place name", "confidence": 0.83, "rationale": "..."}`, property)

	responseText, err := s.call(ctx, "place-validate", systemPrompt, "Phrase: "+text)
	if err != nil {
		return PlaceJudgment{}, err
	}
	var j PlaceJudgment
	if err := json.Unmarshal([]byte(stripFences(responseText)), &j); err != nil {
		log.Printf("llm place-validate parse error: %v", err)
		return PlaceJudgment{}, fmt.Errorf("%w: malformed place judgment", ErrUnavailable)
	}
	j.Confidence = clamp01(j.Confidence)
	return j, nil
}

func (s *Service) ClassifyDepartment(ctx context.Context, text string, options []DeptOption) (DeptJudgment, error) {
	var optionLines strings.Builder
	for _, opt := range options {
		optionLines.WriteString(fmt.Sprintf("- %s: %s", opt.Code, opt.Label))
		if opt.Hints != "" {
			optionLines.WriteString(" (" + opt.Hints + ")")
		}
		optionLines.WriteString("\n")
	}

	systemPrompt := fmt.Sprintf(`You route hotel maintenance/service reports to exactly one department.
Choose "department" strictly from:
%s
If none clearly fits, use an empty string.

Respond with JSON only (no markdown):
{"department": "mantenimiento", "confidence": 0.87, "rationale": "..."}`, optionLines.String())

	responseText, err := s.call(ctx, "dept-classify", systemPrompt, "Report: "+text)
	if err != nil {
		return DeptJudgment{}, err
	}
	var j DeptJudgment
	if err := json.Unmarshal([]byte(stripFences(responseText)), &j); err != nil {
		log.Printf("llm dept-classify parse error: %v", err)
		return DeptJudgment{}, fmt.Errorf("%w: malformed department judgment", ErrUnavailable)
	}
	j.Code = strings.TrimSpace(j.Code)
	j.Confidence = clamp01(j.Confidence)

	// Never trust a code outside the closed set.
	if j.Code != "" {
		valid := false
		for _, opt := range options {
			if opt.Code == j.Code {
				valid = true
				break
			}
		}
		if !valid {
			log.Printf("llm dept-classify out-of-set answer %q dropped", j.Code)
			j = DeptJudgment{}
		}
	}
	return j, nil
}

func (s *Service) call(ctx context.Context, op, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch s.provider {
	case "openai":
		model := s.model
		if model == "" {
			model = defaultOpenAIModel
		}
		log.Printf("llm %s provider=openai model=%s", op, model)
		return s.callOpenAI(ctx, model, systemPrompt, userPrompt)
	default:
		model := s.model
		if model == "" {
			model = defaultAnthropicModel
		}
		log.Printf("llm %s provider=anthropic model=%s", op, model)
		return s.callAnthropic(ctx, model, systemPrompt, userPrompt)
	}
}

func (s *Service) callAnthropic(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(s.anthropicAPIKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.addUsage(message.Usage.InputTokens, message.Usage.OutputTokens)

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: no text content in Anthropic response", ErrUnavailable)
}

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Service) callOpenAI(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	reqBody := openAIRequest{
		Model: model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.openAIAPIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing OpenAI response: %v", ErrUnavailable, err)
	}
	if parsed.Error != nil {
		log.Printf("llm openai api error: %s", parsed.Error.Message)
		return "", fmt.Errorf("%w: %s", ErrUnavailable, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in OpenAI response", ErrUnavailable)
	}
	if parsed.Usage != nil {
		s.addUsage(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	}
	return parsed.Choices[0].Message.Content, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
