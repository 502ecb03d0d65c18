package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"Bt1QPlayer/core/player"
	"Bt1QPlayer/logger"
	"Bt1QPlayer/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// WebSocket 配置
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	sendBuffer  = 256
	eventBuffer = 64
)

// rendererCommand 下发给播放设备的命令
type rendererCommand struct {
	Type       string        `json:"type"`
	Items      []player.Item `json:"items,omitempty"`
	Index      *int          `json:"index,omitempty"`
	PositionMs *int64        `json:"positionMs,omitempty"`
	Mode       string        `json:"mode,omitempty"`
}

// rendererEvent 播放设备上报的事件
type rendererEvent struct {
	Type       string    `json:"type"`
	Index      *int      `json:"index"`
	Item       *wireItem `json:"item"`
	State      string    `json:"state"`
	PositionMs int64     `json:"positionMs"`
	DurationMs int64     `json:"durationMs"`
}

// wireItem 设备回传的条目，id 可能被转成了数字
type wireItem struct {
	ID     json.RawMessage `json:"id"`
	URL    string          `json:"url"`
	Title  string          `json:"title"`
	Artist string          `json:"artist"`
	Track  *model.Track    `json:"track"`
}

// rendererConn 一个已连接的播放设备
type rendererConn struct {
	id   string
	conn *websocket.Conn
	send chan rendererCommand
	done chan struct{}
	once sync.Once
}

func (c *rendererConn) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// Renderer 通过 WebSocket 连接的远程播放设备
// 本地维护一份设备队列的镜像，设备断线重连后按镜像重新同步。
// 命令只入队不等待写出，不会阻塞调用方。
type Renderer struct {
	upgrader websocket.Upgrader

	mu     sync.Mutex
	items  []player.Item
	active int
	repeat player.RepeatPrimitive
	device *rendererConn

	events chan player.Event
}

// NewRenderer 创建远程播放设备桥
func NewRenderer() *Renderer {
	return &Renderer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		active: -1,
		events: make(chan player.Event, eventBuffer),
	}
}

var _ player.Player = (*Renderer)(nil)

func (r *Renderer) Events() <-chan player.Event { return r.events }

// Connected 是否有设备在线
func (r *Renderer) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device != nil
}

func (r *Renderer) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.active = -1
	r.dispatch(rendererCommand{Type: "reset"})
	return nil
}

func (r *Renderer) Add(items ...player.Item) error {
	if len(items) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, items...)
	if r.active < 0 {
		r.active = 0
	}
	r.dispatch(rendererCommand{Type: "add", Items: items})
	return nil
}

func (r *Renderer) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch(rendererCommand{Type: "play"})
	return nil
}

func (r *Renderer) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch(rendererCommand{Type: "pause"})
	return nil
}

func (r *Renderer) SeekTo(position time.Duration) error {
	ms := position.Milliseconds()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatch(rendererCommand{Type: "seek", PositionMs: &ms})
	return nil
}

func (r *Renderer) SkipTo(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.items) {
		return nil
	}
	r.active = index
	r.dispatch(rendererCommand{Type: "skip_to", Index: &index})
	return nil
}

func (r *Renderer) SkipToNext() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active < len(r.items)-1 {
		r.active++
	}
	r.dispatch(rendererCommand{Type: "skip_next"})
	return nil
}

func (r *Renderer) SkipToPrevious() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active > 0 {
		r.active--
	}
	r.dispatch(rendererCommand{Type: "skip_previous"})
	return nil
}

func (r *Renderer) SetRepeatMode(mode player.RepeatPrimitive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repeat = mode
	r.dispatch(rendererCommand{Type: "repeat", Mode: mode.String()})
	return nil
}

func (r *Renderer) ActiveIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Renderer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// dispatch 调用方需持有 mu；没有设备时只更新镜像
// 发送队列满时断开设备，设备重连后按镜像重新同步
func (r *Renderer) dispatch(cmd rendererCommand) {
	if r.device == nil {
		return
	}
	select {
	case r.device.send <- cmd:
	default:
		logger.Warn("[Renderer] 发送队列已满，断开设备",
			logger.String("conn", r.device.id),
			logger.String("type", cmd.Type))
		r.device.close()
		r.device = nil
	}
}

// ServeHTTP 处理 /ws/renderer，新设备连接会替换旧设备
func (r *Renderer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Error("[Renderer] WebSocket 升级失败", logger.ErrorField(err))
		return
	}

	dev := &rendererConn{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan rendererCommand, sendBuffer),
		done: make(chan struct{}),
	}
	r.attach(dev)
	defer r.detach(dev)

	logger.Info("[Renderer] 播放设备已连接", logger.String("conn", dev.id))

	go r.writeLoop(dev)
	r.readLoop(dev)
}

// attach 替换当前设备并按镜像同步完整队列
func (r *Renderer) attach(dev *rendererConn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old := r.device; old != nil {
		logger.Info("[Renderer] 新设备接入，断开旧设备", logger.String("conn", old.id))
		old.close()
	}
	r.device = dev

	r.dispatch(rendererCommand{Type: "reset"})
	r.dispatch(rendererCommand{Type: "repeat", Mode: r.repeat.String()})
	if len(r.items) > 0 {
		items := append([]player.Item(nil), r.items...)
		r.dispatch(rendererCommand{Type: "add", Items: items})
		if r.active > 0 {
			index := r.active
			r.dispatch(rendererCommand{Type: "skip_to", Index: &index})
		}
	}
}

func (r *Renderer) detach(dev *rendererConn) {
	dev.close()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == dev {
		r.device = nil
	}
	logger.Info("[Renderer] 播放设备已断开", logger.String("conn", dev.id))
}

func (r *Renderer) writeLoop(dev *rendererConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case cmd := <-dev.send:
			dev.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := dev.conn.WriteJSON(cmd); err != nil {
				logger.Warn("[Renderer] 写入失败", logger.String("conn", dev.id), logger.ErrorField(err))
				dev.close()
				return
			}
		case <-ticker.C:
			dev.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := dev.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				dev.close()
				return
			}
		case <-dev.done:
			return
		}
	}
}

func (r *Renderer) readLoop(dev *rendererConn) {
	dev.conn.SetReadLimit(maxMessageSize)
	dev.conn.SetReadDeadline(time.Now().Add(pongWait))
	dev.conn.SetPongHandler(func(string) error {
		dev.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := dev.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("[Renderer] 连接异常关闭", logger.String("conn", dev.id), logger.ErrorField(err))
			}
			return
		}
		dev.conn.SetReadDeadline(time.Now().Add(pongWait))

		var raw rendererEvent
		if err := json.Unmarshal(message, &raw); err != nil {
			logger.Warn("[Renderer] 无法解析设备事件", logger.String("conn", dev.id), logger.ErrorField(err))
			continue
		}

		ev, ok := r.translate(raw)
		if !ok {
			logger.Debug("[Renderer] 忽略未知事件", logger.String("type", raw.Type))
			continue
		}

		select {
		case r.events <- ev:
		case <-dev.done:
			return
		}
	}
}

// translate 将设备事件转换为播放器事件，并同步本地镜像的当前位置
func (r *Renderer) translate(raw rendererEvent) (player.Event, bool) {
	switch player.EventType(raw.Type) {
	case player.EventActiveTrackChanged:
		ev := player.Event{Type: player.EventActiveTrackChanged, Index: -1}
		if raw.Index != nil {
			ev.Index = *raw.Index
			r.mu.Lock()
			if ev.Index >= 0 && ev.Index < len(r.items) {
				r.active = ev.Index
			}
			r.mu.Unlock()
		}
		if raw.Item != nil {
			ev.Item = &player.Item{
				ID:     normaliseID(raw.Item.ID),
				URL:    raw.Item.URL,
				Title:  raw.Item.Title,
				Artist: raw.Item.Artist,
				Track:  raw.Item.Track,
			}
		}
		return ev, true
	case player.EventStateChanged:
		return player.Event{Type: player.EventStateChanged, Status: player.Status(strings.ToLower(raw.State))}, true
	case player.EventProgress:
		return player.Event{
			Type:     player.EventProgress,
			Position: time.Duration(raw.PositionMs) * time.Millisecond,
			Duration: time.Duration(raw.DurationMs) * time.Millisecond,
		}, true
	case player.EventQueueEnded:
		return player.Event{Type: player.EventQueueEnded}, true
	default:
		return player.Event{}, false
	}
}

// normaliseID 将 JSON 中的字符串或数字 id 统一为字符串
func normaliseID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return string(raw)
}
