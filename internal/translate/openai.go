package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses api.openai.com
	Model   string
	Source  string
	Target  string
	Timeout time.Duration
}

// OpenAI translates through any OpenAI-compatible chat completion endpoint
type OpenAI struct {
	client oai.Client
	model  string
	source string
	target string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty (set translate.api_key or OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}
	if cfg.Target == "" {
		return nil, fmt.Errorf("openai: target language must not be empty")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}))
	}

	return &OpenAI{
		client: oai.NewClient(reqOpts...),
		model:  cfg.Model,
		source: cfg.Source,
		target: cfg.Target,
	}, nil
}

func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	resp, err := o.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(o.prompt()),
			oai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) prompt() string {
	from := "the source language"
	if o.source != "" {
		from = languageName(o.source)
	}
	return fmt.Sprintf(
		"Translate the user's text from %s to %s. Reply with the translation only and keep the line breaks.",
		from, languageName(o.target))
}
