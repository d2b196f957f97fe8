package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkerpayne/bard/config"
	"github.com/parkerpayne/bard/repository"
)

var (
	passwdCurrent  string
	passwdNew      string
	passwdUsername string
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "修改登录凭据",
	Long:  `校验当前密码后更新 auth.json 中的密码, 可同时修改用户名`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		creds, err := repository.NewCredentialsRepository(cfg.AuthFile, cfg.DefaultUsername, cfg.DefaultPassword)
		if err != nil {
			return err
		}
		if err := creds.Change(passwdCurrent, passwdUsername, passwdNew); err != nil {
			return err
		}
		username, err := creds.Username()
		if err != nil {
			return err
		}
		fmt.Printf("凭据已更新, 用户名: %s\n", username)
		return nil
	},
}

func init() {
	passwdCmd.Flags().StringVar(&passwdCurrent, "current", "", "当前密码")
	passwdCmd.Flags().StringVar(&passwdNew, "new", "", "新密码 (至少 6 位)")
	passwdCmd.Flags().StringVar(&passwdUsername, "username", "", "新用户名 (可选, 至少 3 位)")
	_ = passwdCmd.MarkFlagRequired("current")
	_ = passwdCmd.MarkFlagRequired("new")
	rootCmd.AddCommand(passwdCmd)
}
