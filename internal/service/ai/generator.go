package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"meddatachat/internal/config"
)

var ErrMissingAPIKey = errors.New("api key is required")

// Generator sends single-turn prompts to one provider with one API key. A
// chat model is built per call so the same Generator can address the primary
// and the fallback model.
type Generator struct {
	provider string
	cfg      config.ProviderConfig
	token    string
	client   *genai.Client
}

func NewGenerator(ctx context.Context, provider string, cfg config.ProviderConfig, token string) (*Generator, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingAPIKey
	}
	g := &Generator{provider: strings.ToLower(provider), cfg: cfg, token: token}
	switch g.provider {
	case config.ProviderGemini:
		cc := &genai.ClientConfig{APIKey: token, Backend: genai.BackendGeminiAPI}
		if cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		g.client = client
	case config.ProviderOpenAI, config.ProviderClaude:
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	return g, nil
}

func (g *Generator) Provider() string { return g.provider }

// Generate sends prompt as a single user message to modelName and returns the
// reply text.
func (g *Generator) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	chatModel, err := g.chatModel(ctx, modelName)
	if err != nil {
		return "", err
	}
	resp, err := chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("model %s returned no message", modelName)
	}
	return resp.Content, nil
}

func (g *Generator) chatModel(ctx context.Context, modelName string) (model.BaseChatModel, error) {
	var (
		chatModel model.ToolCallingChatModel
		err       error
	)
	switch g.provider {
	case config.ProviderOpenAI:
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: g.cfg.BaseURL,
			Model:   modelName,
			APIKey:  g.token,
		})
	case config.ProviderGemini:
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: g.client,
			Model:  modelName,
		})
	case config.ProviderClaude:
		var baseURLPtr *string
		if g.cfg.BaseURL != "" {
			baseURLPtr = &g.cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    g.token,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", g.provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s model %s: %w", g.provider, modelName, err)
	}
	return chatModel, nil
}
