package cmd

import (
	"fmt"

	"github.com/nao1215/taskapi/internal/config"
	"github.com/nao1215/taskapi/internal/login"
	"github.com/spf13/cobra"
)

// newIssueTokenCmd は設定の秘密鍵でトークンを発行するコマンドを生成する。
func newIssueTokenCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "issue-token <user>",
		Short: "Print a signed bearer token for the given user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := cfg()
			tok, err := login.NewHandler(c.JWTSecret, nil, c.TokenTTL).Issue(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}

// newHashPasswordCmd はユーザー一覧に設定するbcryptハッシュを出力するコマンドを生成する。
func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for the users map in the config file",
		Args:  cobra.ExactArgs(1),
		// 設定ファイルを必要としない
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := login.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
