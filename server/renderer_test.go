package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Bt1QPlayer/core/player"
	"Bt1QPlayer/model"

	"github.com/gorilla/websocket"
)

func dialRenderer(t *testing.T, r *Renderer) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	// 设备接入后首条命令为 reset
	readUntil(t, conn, "reset")
	return conn
}

// readUntil 读取命令直到出现指定类型
func readUntil(t *testing.T, conn *websocket.Conn, typ string) rendererCommand {
	t.Helper()
	for {
		var cmd rendererCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if cmd.Type == typ {
			return cmd
		}
	}
}

func nextEvent(t *testing.T, r *Renderer) player.Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event received")
		return player.Event{}
	}
}

func TestRendererForwardsCommands(t *testing.T) {
	r := NewRenderer()
	conn := dialRenderer(t, r)

	item := player.NewItem(model.Track{ID: "A", Title: "Song A"}, "https://cdn.test/A")
	if err := r.Add(item); err != nil {
		t.Fatal(err)
	}
	cmd := readUntil(t, conn, "add")
	if len(cmd.Items) != 1 || cmd.Items[0].ID != "A" || cmd.Items[0].URL != "https://cdn.test/A" {
		t.Fatalf("add = %+v", cmd.Items)
	}
	if cmd.Items[0].Track == nil || cmd.Items[0].Track.Title != "Song A" {
		t.Error("embedded track missing")
	}

	if err := r.SetRepeatMode(player.RepeatPrimitiveQueue); err != nil {
		t.Fatal(err)
	}
	if cmd := readUntil(t, conn, "repeat"); cmd.Mode != "queue" {
		t.Errorf("repeat mode = %q", cmd.Mode)
	}

	if err := r.SeekTo(1500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if cmd := readUntil(t, conn, "seek"); cmd.PositionMs == nil || *cmd.PositionMs != 1500 {
		t.Errorf("seek = %+v", cmd.PositionMs)
	}
}

func TestRendererNormalisesNumericIDs(t *testing.T) {
	r := NewRenderer()
	conn := dialRenderer(t, r)

	msg := []byte(`{"type":"active_track_changed","index":0,"item":{"id":123,"title":"Song A","artist":"Artist"}}`)
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}

	ev := nextEvent(t, r)
	if ev.Type != player.EventActiveTrackChanged || ev.Index != 0 {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Item == nil || ev.Item.ID != "123" || ev.Item.Title != "Song A" {
		t.Errorf("item = %+v", ev.Item)
	}

	for _, raw := range []string{
		`{"type":"state_changed","state":"Buffering"}`,
		`{"type":"progress","positionMs":2000,"durationMs":180000}`,
		`{"type":"queue_ended"}`,
	} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
	}
	if ev := nextEvent(t, r); ev.Type != player.EventStateChanged || ev.Status != player.StatusBuffering {
		t.Errorf("state event = %+v", ev)
	}
	if ev := nextEvent(t, r); ev.Type != player.EventProgress || ev.Position != 2*time.Second || ev.Duration != 3*time.Minute {
		t.Errorf("progress event = %+v", ev)
	}
	if ev := nextEvent(t, r); ev.Type != player.EventQueueEnded {
		t.Errorf("queue event = %+v", ev)
	}
}

func TestRendererSyncsQueueOnConnect(t *testing.T) {
	r := NewRenderer()
	if err := r.Add(
		player.NewItem(model.Track{ID: "A"}, "https://cdn.test/A"),
		player.NewItem(model.Track{ID: "B"}, "https://cdn.test/B"),
	); err != nil {
		t.Fatal(err)
	}
	if err := r.SkipTo(1); err != nil {
		t.Fatal(err)
	}

	conn := dialRenderer(t, r)
	add := readUntil(t, conn, "add")
	if len(add.Items) != 2 {
		t.Fatalf("synced %d items, want 2", len(add.Items))
	}
	skip := readUntil(t, conn, "skip_to")
	if skip.Index == nil || *skip.Index != 1 {
		t.Errorf("skip_to = %v, want 1", skip.Index)
	}
}

func TestRendererDrivesEngine(t *testing.T) {
	r := NewRenderer()
	engine := player.NewEngine(r, &fakeResolver{}, nil, player.Options{})
	t.Cleanup(engine.Close)
	conn := dialRenderer(t, r)

	if err := engine.SetRepeatMode(model.RepeatAll); err != nil {
		t.Fatal(err)
	}
	if err := engine.PlayQueue(context.Background(), tracks("A", "B"), 0); err != nil {
		t.Fatal(err)
	}
	engine.Wait()
	readUntil(t, conn, "play")

	// 设备报告切到第二首，ID 已变成数字
	msg, _ := json.Marshal(map[string]interface{}{
		"type":  "active_track_changed",
		"index": 1,
		"item":  map[string]interface{}{"id": 99, "title": "Song B", "artist": "Artist"},
	})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if st := engine.Snapshot(); st.CurrentTrack != nil && st.CurrentTrack.ID == "B" {
			if st.CurrentIndex != 1 {
				t.Errorf("current index = %d, want 1", st.CurrentIndex)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not reconcile active track")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"queue_ended"}`)); err != nil {
		t.Fatal(err)
	}
	skip := readUntil(t, conn, "skip_to")
	if skip.Index == nil || *skip.Index != 0 {
		t.Errorf("repeat all skip_to = %v, want 0", skip.Index)
	}
	readUntil(t, conn, "play")
}

// stalledDevice 建立一条真实连接，但不启动写循环，发送队列不会被消费
func stalledDevice(t *testing.T, r *Renderer, buffer int) (*rendererConn, *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := r.upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(ts.Close)

	client, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	var conn *websocket.Conn
	select {
	case conn = <-serverConns:
	case <-time.After(3 * time.Second):
		t.Fatal("server side not upgraded")
	}
	dev := &rendererConn{
		id:   "stalled",
		conn: conn,
		send: make(chan rendererCommand, buffer),
		done: make(chan struct{}),
	}
	return dev, client
}

func TestRendererDropsDeviceWhenSendBufferFull(t *testing.T) {
	r := NewRenderer()
	dev, client := stalledDevice(t, r, 4)
	r.attach(dev) // reset + repeat 占用两个位置

	for i := 0; i < 4; i++ {
		if err := r.Add(player.NewItem(model.Track{ID: string(rune('A' + i))}, "https://cdn.test/x")); err != nil {
			t.Fatal(err)
		}
	}

	if r.Connected() {
		t.Fatal("device still attached after send buffer overflow")
	}
	select {
	case <-dev.done:
	default:
		t.Fatal("device connection not closed")
	}
	client.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("client connection still open")
	}
	if n := r.Len(); n != 4 {
		t.Fatalf("mirror has %d items, want 4", n)
	}

	// 重连后按镜像完整同步
	conn := dialRenderer(t, r)
	add := readUntil(t, conn, "add")
	if len(add.Items) != 4 || add.Items[3].ID != "D" {
		t.Errorf("resynced items = %+v", add.Items)
	}
}

func TestNormaliseID(t *testing.T) {
	tests := map[string]string{
		`"abc"`: "abc",
		`123`:   "123",
		`123.0`: "123",
		` 42 `:  "42",
		`null`:  "",
		``:      "",
		`1.5`:   "1.5",
		`"007"`: "007",
	}
	for raw, want := range tests {
		if got := normaliseID(json.RawMessage(raw)); got != want {
			t.Errorf("normaliseID(%s) = %q, want %q", raw, got, want)
		}
	}
}
