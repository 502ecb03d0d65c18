package server

import (
	"net/http"
	"time"

	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const stateBuffer = 32

// handleStateSocket 推送播放状态快照，首条消息为当前快照
// 订阅回调在引擎锁内同步执行，因此只做非阻塞入队，慢客户端会丢失中间快照
func (s *Server) handleStateSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[StateSocket] WebSocket 升级失败", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	updates := make(chan model.PlaybackState, stateBuffer)
	unsubscribe := s.playback.Subscribe(func(st model.PlaybackState) {
		select {
		case updates <- st:
		default:
			logger.Debug("[StateSocket] 客户端过慢，丢弃快照", logger.String("conn", connID))
		}
	})
	defer unsubscribe()

	logger.Info("[StateSocket] 客户端已连接", logger.String("conn", connID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case st := <-updates:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(st); err != nil {
				logger.Warn("[StateSocket] 写入失败", logger.String("conn", connID), logger.ErrorField(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			logger.Info("[StateSocket] 客户端已断开", logger.String("conn", connID))
			return
		}
	}
}
