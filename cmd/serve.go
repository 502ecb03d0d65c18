package cmd

import (
	"os/signal"
	"syscall"

	"Bt1QPlayer/config"
	"Bt1QPlayer/core/player"
	"Bt1QPlayer/core/state"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/server"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动播放引擎与控制接口",
	Long:  `启动播放队列引擎、远程播放设备桥 (/ws/renderer) 以及 HTTP 控制接口，收到 SIGINT/SIGTERM 后优雅退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		renderer := server.NewRenderer()
		engine := player.NewEngine(renderer, a.resolver, state.NewStore(), player.Options{})
		defer engine.Close()

		if cfg.EndpointsFile != "" {
			go func() {
				err := config.WatchEndpoints(ctx, cfg.EndpointsFile, func(ec config.EndpointsConfig) {
					a.reloadEndpoints(ec)
				})
				if err != nil {
					logger.Warn("[Serve] 端点配置监听已停止", logger.ErrorField(err))
				}
			}()
		}

		if cfg.JWTSecret == "" {
			logger.Warn("[Serve] 未设置 JWT_SECRET，控制接口不做认证")
		}

		srv := server.New(engine, a.library, a.resolver, server.Options{
			JWTSecret: cfg.JWTSecret,
			Renderer:  renderer,
		})

		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if err := srv.Run(ctx, addr); err != nil {
			logger.Error("[Serve] HTTP 服务异常退出", logger.ErrorField(err))
			return err
		}
		logger.Info("[Serve] 服务已停止")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "监听地址，默认取 HTTP_ADDR")
	rootCmd.AddCommand(serveCmd)
}
