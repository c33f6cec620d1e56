// Package cmd はtaskapiコマンドのサブコマンドを定義する。
package cmd

import (
	"fmt"
	"os"

	"github.com/nao1215/taskapi/internal/config"
	"github.com/spf13/cobra"
)

// newRootCmd はルートコマンドを生成する。
func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "taskapi",
		Short:         "Task API server",
		Long:          `Task API server with a route table dispatcher and HMAC-SHA256 bearer tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return fmt.Errorf("設定の読み込みに失敗: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env vars override it)")

	loaded := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(loaded),
		newMigrateCmd(loaded),
		newIssueTokenCmd(loaded),
		newHashPasswordCmd(),
	)
	return root
}

// Execute はルートコマンドを実行する。
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
