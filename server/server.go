package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"Bt1QPlayer/core/auth"
	"Bt1QPlayer/core/state"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Playback 播放控制
type Playback interface {
	PlaySong(ctx context.Context, track model.Track) error
	PlayQueue(ctx context.Context, tracks []model.Track, startIndex int) error
	TogglePlayPause() error
	Pause() error
	Resume() error
	SeekTo(position time.Duration) error
	SkipNext() error
	SkipPrevious() error
	SetShuffle(enabled bool)
	SetRepeatMode(mode model.RepeatMode) error
	Stop() error
	Subscribe(l state.Listener) func()
	Snapshot() model.PlaybackState
}

// Library 收藏与偏好
type Library interface {
	Like(ctx context.Context, track *model.Track) error
	Unlike(ctx context.Context, trackID string, source model.Source) error
	IsLiked(ctx context.Context, trackID string, source model.Source) (bool, error)
	ListLiked(ctx context.Context, limit, offset int) ([]*model.LikedTrack, error)
	GetMusicSourcePreference(ctx context.Context) (model.Source, error)
	SetMusicSourcePreference(ctx context.Context, source model.Source) error
}

// Resolver 单曲解析
type Resolver interface {
	Resolve(ctx context.Context, track model.Track) (string, error)
}

// Options 服务器可选参数
type Options struct {
	JWTSecret string       // 为空时不校验令牌
	Renderer  http.Handler // /ws/renderer，为空时不注册
}

// Server 控制接口
type Server struct {
	playback  Playback
	library   Library
	resolver  Resolver
	renderer  http.Handler
	jwtSecret string
	upgrader  websocket.Upgrader
}

type contextKey string

const claimsKey contextKey = "claims"

// New 创建控制接口服务器
func New(playback Playback, library Library, resolver Resolver, opts Options) *Server {
	return &Server{
		playback:  playback,
		library:   library,
		resolver:  resolver,
		renderer:  opts.Renderer,
		jwtSecret: opts.JWTSecret,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router 构建路由
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	// 播放控制
	api.HandleFunc("/player/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/player/queue", s.handlePlayQueue).Methods(http.MethodPost)
	api.HandleFunc("/player/song", s.handlePlaySong).Methods(http.MethodPost)
	api.HandleFunc("/player/toggle", s.command(s.playback.TogglePlayPause)).Methods(http.MethodPost)
	api.HandleFunc("/player/pause", s.command(s.playback.Pause)).Methods(http.MethodPost)
	api.HandleFunc("/player/resume", s.command(s.playback.Resume)).Methods(http.MethodPost)
	api.HandleFunc("/player/next", s.command(s.playback.SkipNext)).Methods(http.MethodPost)
	api.HandleFunc("/player/previous", s.command(s.playback.SkipPrevious)).Methods(http.MethodPost)
	api.HandleFunc("/player/stop", s.command(s.playback.Stop)).Methods(http.MethodPost)
	api.HandleFunc("/player/seek", s.handleSeek).Methods(http.MethodPost)
	api.HandleFunc("/player/shuffle", s.handleShuffle).Methods(http.MethodPut)
	api.HandleFunc("/player/repeat", s.handleRepeat).Methods(http.MethodPut)

	// 解析
	api.HandleFunc("/resolve/{source}/{id}", s.handleResolve).Methods(http.MethodGet)

	// 曲库
	api.HandleFunc("/library/liked", s.handleListLiked).Methods(http.MethodGet)
	api.HandleFunc("/library/liked/{source}/{id}", s.handleLike).Methods(http.MethodPost)
	api.HandleFunc("/library/liked/{source}/{id}", s.handleUnlike).Methods(http.MethodDelete)
	api.HandleFunc("/library/preference", s.handleGetPreference).Methods(http.MethodGet)
	api.HandleFunc("/library/preference", s.handleSetPreference).Methods(http.MethodPut)

	// WebSocket
	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(s.authMiddleware)
	ws.HandleFunc("/state", s.handleStateSocket).Methods(http.MethodGet)
	if s.renderer != nil {
		ws.Handle("/renderer", s.renderer).Methods(http.MethodGet)
	}

	return router
}

// Run 启动 HTTP 服务，ctx 结束后优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Router(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("[Server] HTTP 服务启动", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("[Server] 正在关闭 HTTP 服务")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware 校验 Bearer 令牌；WebSocket 客户端可通过 token 查询参数传递
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.jwtSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}
			token = parts[1]
		}
		if token == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(s.jwtSecret, token)
		if err != nil {
			logger.Warn("[Server] 令牌无效", logger.String("path", r.URL.Path), logger.ErrorField(err))
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext 取出认证中间件写入的令牌信息
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[Server] 写入响应失败", logger.ErrorField(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
