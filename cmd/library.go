package cmd

import (
	"fmt"
	"time"

	"Bt1QPlayer/storage"

	"github.com/spf13/cobra"
)

var (
	libraryPrefix string
	libraryLimit  int
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "列出本地曲库",
	Long:  `列出 MinIO 存储桶中可播放的音频文件，显示由对象路径推断出的歌曲信息。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewClient(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		tracks, err := storage.ListLocalTracks(cmd.Context(), client, cfg.MinioBucket, libraryPrefix)
		if err != nil {
			return fmt.Errorf("列出文件失败: %w", err)
		}

		fmt.Printf("\n找到 %d 首歌曲 (前缀: %q, 耗时 %s):\n", len(tracks), libraryPrefix, time.Since(start).Round(time.Millisecond))
		for i, t := range tracks {
			if libraryLimit > 0 && i >= libraryLimit {
				fmt.Printf("... 其余 %d 首未显示\n", len(tracks)-libraryLimit)
				break
			}
			fmt.Printf("%d. %s - %s [%s] %s\n", i+1, t.Title, t.Artist, t.Album, t.QualityLabel)
			fmt.Printf("   %s\n", t.ID)
		}
		return nil
	},
}

func init() {
	libraryCmd.Flags().StringVarP(&libraryPrefix, "prefix", "p", "", "对象路径前缀")
	libraryCmd.Flags().IntVarP(&libraryLimit, "limit", "l", 50, "最多显示条数，0 表示全部")
	rootCmd.AddCommand(libraryCmd)
}
