// =============================================================================
// AgentCoord 主入口
// =============================================================================
// 多 Agent 协调服务命令行
//
// 使用方法:
//
//	agentcoord serve                          # 启动服务
//	agentcoord serve --config config.yaml     # 指定配置文件
//	agentcoord simulate --scenario team.yaml  # 离线运行一个协调场景
//	agentcoord migrate up                     # 运行数据库迁移
//	agentcoord version                        # 显示版本信息
// =============================================================================

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BaSui01/agentcoord/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions 所有子命令共享的全局参数
type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "agentcoord",
		Short:         "Multi-agent coordination engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(opts.envFile)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file loaded before config (default: .env if present)")

	root.AddCommand(
		newServeCmd(opts),
		newSimulateCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadEnvFile 显式指定的文件必须存在；默认的 .env 缺失时忽略
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// loadConfig 默认值 → YAML → 环境变量，最后校验
func (o *rootOptions) loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if o.configPath != "" {
		loader = loader.WithConfigPath(o.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "AgentCoord %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		},
	}
}
