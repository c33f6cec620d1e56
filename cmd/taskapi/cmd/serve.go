package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/taskapi/internal/config"
	"github.com/nao1215/taskapi/internal/server"
	"github.com/spf13/cobra"
)

// newServeCmd はサーバーを起動するコマンドを生成する。
func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := server.NewServer(ctx, cfg())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			return s.Run(ctx)
		},
	}
}
