package cmd

import (
	"fmt"
	"sort"

	"Bt1QPlayer/config"
	"Bt1QPlayer/core/endpoint"

	"github.com/spf13/cobra"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "查看端点配置",
	Long:  `校验端点配置文件，并按尝试顺序列出每个音源的镜像端点。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, err := config.LoadEndpoints(cfg.EndpointsFile)
		if err != nil {
			return err
		}
		if cfg.EndpointsFile == "" {
			fmt.Println("未设置 ENDPOINTS_FILE，使用内置端点")
		} else {
			fmt.Printf("端点配置: %s\n", cfg.EndpointsFile)
		}

		registry := endpoint.NewRegistry(candidates(ec))
		sources := registry.Sources()
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

		for _, src := range sources {
			sc := ec[src]
			fmt.Printf("\n[%s] path=%s fallback=%s\n", src, sc.Path, sc.FallbackQuality)
			for i, ep := range registry.OrderedEndpoints(src) {
				fmt.Printf("  %d. %-12s %-32s max=%s\n", i+1, ep.Name, ep.BaseURL, ep.MaxQuality)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}
