package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const openAIDefaultModel = "gpt-4o-mini"

// ErrEmptyCompletion is returned when the model answers with no choices.
var ErrEmptyCompletion = errors.New("translation completion returned no choices")

// OpenAIConfig holds configuration for the OpenAI translator.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string       // Optional (tests, compatible gateways)
	HTTPClient *http.Client // Optional (tests)
}

// OpenAITranslator translates paragraphs with the chat completions API.
// Retries are disabled: the Guard's deadline is the only policy.
type OpenAITranslator struct {
	model  string
	client openai.Client
}

// NewOpenAITranslator creates a translator backed by the official OpenAI SDK.
func NewOpenAITranslator(cfg OpenAIConfig) *OpenAITranslator {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITranslator{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Translate implements Translator.
func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	prompt := fmt.Sprintf(
		"Translate the user's text from %s to %s. Reply with the translation only, no commentary.",
		sourceLang, targetLang,
	)

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai translation error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai translation error (status %d)", apiErr.StatusCode)
	}
	return err
}
