package model

import "fmt"

// RepeatMode 循环模式
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
	RepeatOne RepeatMode = "one"
)

// ParseRepeatMode 解析循环模式
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch RepeatMode(s) {
	case RepeatOff, RepeatAll, RepeatOne:
		return RepeatMode(s), nil
	}
	return "", fmt.Errorf("unknown repeat mode: %q", s)
}

// PlaybackState 对外可见的播放状态快照
// 每次变化都整体替换，消费者不应原地修改
type PlaybackState struct {
	IsPlaying      bool       `json:"isPlaying"`
	IsLoading      bool       `json:"isLoading"`
	CurrentTrack   *Track     `json:"currentTrack"`
	PositionMs     int64      `json:"positionMs"`
	DurationMs     int64      `json:"durationMs"`
	Queue          []Track    `json:"queue"`
	CurrentIndex   int        `json:"currentIndex"`
	ShuffleEnabled bool       `json:"shuffleEnabled"`
	RepeatMode     RepeatMode `json:"repeatMode"`
}

// InitialPlaybackState 空闲时的初始状态
func InitialPlaybackState() PlaybackState {
	return PlaybackState{
		Queue:        []Track{},
		CurrentIndex: -1,
		RepeatMode:   RepeatOff,
	}
}

// Clone 深拷贝快照，保证广播出去的快照互不共享底层数组
func (s PlaybackState) Clone() PlaybackState {
	out := s
	out.Queue = CloneTracks(s.Queue)
	if out.Queue == nil {
		out.Queue = []Track{}
	}
	if s.CurrentTrack != nil {
		t := *s.CurrentTrack
		out.CurrentTrack = &t
	}
	return out
}
