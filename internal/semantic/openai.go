package semantic

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/NielsdaWheelz/clipsift/internal/config"
	"github.com/NielsdaWheelz/clipsift/internal/errors"
)

// requestTimeout bounds a single classification call.
const requestTimeout = 60 * time.Second

// OpenAI is an LLM backed by any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewLLM builds the LLM configured in cfg, or nil when the provider is none.
// A missing API key for the openai provider is E_INVALID_CONFIG.
func NewLLM(cfg config.Semantic) (LLM, error) {
	if cfg.Provider != config.ProviderOpenAI {
		return nil, nil
	}
	envName := cfg.APIKeyEnv
	if envName == "" {
		envName = "OPENAI_API_KEY"
	}
	key := strings.TrimSpace(os.Getenv(envName))
	if key == "" && cfg.BaseURL == "" {
		return nil, errors.NewWithDetails(errors.EInvalidConfig, "semantic provider openai needs an API key",
			map[string]string{"hint": "export " + envName + " or set semantic.base_url for a local endpoint"})
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Complete sends one system + user message and returns the first choice.
func (o *OpenAI) Complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       o.model,
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", errors.Wrap(errors.EClassifyFailed, "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.EClassifyFailed, "model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAI) String() string { return fmt.Sprintf("openai(%s)", o.model) }
