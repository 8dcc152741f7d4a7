package decompose

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentcoord/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// NewFromConfig 按配置创建分解器，类型为空时使用启发式分解
func NewFromConfig(cfg config.DecomposerConfig, logger *zap.Logger) (Decomposer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "heuristic":
		return NewHeuristic(), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai decomposer requires an API key")
		}
		reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
		}
		if cfg.Timeout > 0 {
			reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
		}
		if cfg.MaxRetries >= 0 {
			reqOpts = append(reqOpts, option.WithMaxRetries(cfg.MaxRetries))
		}
		client := openai.NewClient(reqOpts...)
		return NewOpenAI(&client, logger, func(o *OpenAIOptions) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown decomposer type: %q", cfg.Type)
	}
}
