package cmd

import (
	"context"
	"fmt"
	"time"

	"Bt1QPlayer/model"

	"github.com/spf13/cobra"
)

var (
	resolveSource string
	resolveID     string
	resolveTitle  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "解析单首歌曲的播放地址",
	Long:  `按端点顺序和音质档位解析指定歌曲的可播放地址，用于排查镜像可用性。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveID == "" {
			return fmt.Errorf("请通过 --id 指定歌曲 ID")
		}
		src, err := model.ParseSource(resolveSource)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		track := model.Track{ID: resolveID, Title: resolveTitle, Source: src}
		fmt.Printf("正在解析: %s/%s\n", src, resolveID)

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		start := time.Now()
		url, err := a.resolver.Resolve(ctx, track)
		if err != nil {
			return fmt.Errorf("解析失败: %w", err)
		}

		fmt.Printf("\n播放地址 (%s):\n%s\n", time.Since(start).Round(time.Millisecond), url)
		if last := a.endpoints.LastWorking(src); last != "" {
			fmt.Printf("命中端点: %s\n", last)
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveSource, "source", "s", "netease", "音源 (local/netease/tidal/qobuz)")
	resolveCmd.Flags().StringVarP(&resolveID, "id", "i", "", "歌曲 ID，本地曲库为对象路径")
	resolveCmd.Flags().StringVarP(&resolveTitle, "title", "t", "", "歌曲标题，仅用于日志")
	rootCmd.AddCommand(resolveCmd)
}
