package cmd

import (
	"fmt"

	"github.com/nao1215/taskapi/internal/config"
	"github.com/nao1215/taskapi/internal/task"
	"github.com/nao1215/taskapi/pkg/migration"
	"github.com/spf13/cobra"
)

// newMigrateCmd はマイグレーションを適用して版を表示するコマンドを生成する。
func newMigrateCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and list applied versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := task.OpenDB(ctx, cfg().DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			versions, err := migration.Applied(ctx, db)
			if err != nil {
				return fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
			}
			for _, v := range versions {
				fmt.Fprintf(cmd.OutOrStdout(), "%06d\t%s\n", v.Number, v.AppliedAt)
			}
			return nil
		},
	}
}
