package cmd

import (
	"fmt"
	"time"

	"Bt1QPlayer/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenUserID   int64
	tokenUsername string
	tokenTTL      time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发控制接口令牌",
	Long:  `使用 JWT_SECRET 签发 Bearer 令牌，供控制端和播放设备访问 /api 与 /ws。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.GenerateToken(cfg.JWTSecret, tokenUserID, tokenUsername, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 1, "用户 ID")
	tokenCmd.Flags().StringVar(&tokenUsername, "username", "admin", "用户名")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "有效期")
	rootCmd.AddCommand(tokenCmd)
}
