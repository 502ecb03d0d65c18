package player

import (
	"time"

	"Bt1QPlayer/model"
)

// Item 推送给外部播放子系统的队列条目
// 除了播放所需的最小字段外，还携带完整的 Track，供切歌事件回来时直接还原
type Item struct {
	ID              string       `json:"id"`
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Artist          string       `json:"artist"`
	Album           string       `json:"album,omitempty"`
	ArtworkURL      string       `json:"artwork,omitempty"`
	DurationSeconds float64      `json:"duration,omitempty"`
	Track           *model.Track `json:"track,omitempty"`
}

// NewItem 根据歌曲和已解析的播放地址构造队列条目
func NewItem(track model.Track, url string) Item {
	t := track
	item := Item{
		ID:              track.ID,
		URL:             url,
		Title:           track.Title,
		Artist:          track.Artist,
		Album:           track.Album,
		DurationSeconds: track.DurationSeconds,
		Track:           &t,
	}
	if track.CoverArtURL != nil {
		item.ArtworkURL = *track.CoverArtURL
	}
	return item
}

// Status 外部播放子系统上报的播放状态
type Status string

const (
	StatusNone      Status = "none"
	StatusReady     Status = "ready"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusBuffering Status = "buffering"
	StatusLoading   Status = "loading"
	StatusEnded     Status = "ended"
	StatusError     Status = "error"
)

// EventType 事件类型
type EventType string

const (
	EventActiveTrackChanged EventType = "active_track_changed"
	EventStateChanged       EventType = "state_changed"
	EventProgress           EventType = "progress"
	EventQueueEnded         EventType = "queue_ended"
)

// Event 外部播放子系统事件
type Event struct {
	Type     EventType
	Index    int    // active_track_changed: 子系统队列中的位置，-1 表示无
	Item     *Item  // active_track_changed: 子系统报告的条目，可能只有部分字段
	Status   Status // state_changed
	Position time.Duration
	Duration time.Duration
}

// RepeatPrimitive 子系统原生的循环模式
type RepeatPrimitive int

const (
	RepeatPrimitiveOff RepeatPrimitive = iota
	RepeatPrimitiveTrack
	RepeatPrimitiveQueue
)

// String 用于日志与线路协议
func (r RepeatPrimitive) String() string {
	switch r {
	case RepeatPrimitiveTrack:
		return "track"
	case RepeatPrimitiveQueue:
		return "queue"
	default:
		return "off"
	}
}

// PrimitiveFor 将领域循环模式映射到子系统原语
func PrimitiveFor(mode model.RepeatMode) RepeatPrimitive {
	switch mode {
	case model.RepeatOne:
		return RepeatPrimitiveTrack
	case model.RepeatAll:
		return RepeatPrimitiveQueue
	default:
		return RepeatPrimitiveOff
	}
}

// Player 外部播放子系统
// 实现方负责解码与输出，并维护自己的队列与当前位置。
// 命令方法不得同步等待 Events 通道被消费。
type Player interface {
	Reset() error
	Add(items ...Item) error
	Play() error
	Pause() error
	SeekTo(position time.Duration) error
	SkipTo(index int) error
	SkipToNext() error
	SkipToPrevious() error
	SetRepeatMode(mode RepeatPrimitive) error

	// ActiveIndex 子系统当前播放的位置，没有时为 -1
	ActiveIndex() int
	// Len 子系统队列长度
	Len() int

	Events() <-chan Event
}
