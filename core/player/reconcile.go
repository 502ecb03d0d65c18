package player

import (
	"Bt1QPlayer/model"
)

// matcher 将子系统的切歌事件映射回领域歌曲
type matcher struct {
	name  string
	match func(ev Event, tracks []model.Track) (model.Track, bool)
}

// matchers 按优先级排列，第一个命中的生效
// 子系统跨边界传回的 ID 可能被转换成数字，因此不能只依赖 ID
var matchers = []matcher{
	{name: "embedded", match: matchEmbedded},
	{name: "id", match: matchByID},
	{name: "title_artist", match: matchByTitleArtist},
	{name: "position", match: matchByPosition},
}

func matchEmbedded(ev Event, _ []model.Track) (model.Track, bool) {
	if ev.Item == nil || ev.Item.Track == nil {
		return model.Track{}, false
	}
	return *ev.Item.Track, true
}

func matchByID(ev Event, tracks []model.Track) (model.Track, bool) {
	if ev.Item == nil || ev.Item.ID == "" {
		return model.Track{}, false
	}
	for _, t := range tracks {
		if t.ID == ev.Item.ID {
			return t, true
		}
	}
	return model.Track{}, false
}

func matchByTitleArtist(ev Event, tracks []model.Track) (model.Track, bool) {
	if ev.Item == nil || ev.Item.Title == "" {
		return model.Track{}, false
	}
	for _, t := range tracks {
		if t.SameSong(ev.Item.Title, ev.Item.Artist) {
			return t, true
		}
	}
	return model.Track{}, false
}

func matchByPosition(ev Event, tracks []model.Track) (model.Track, bool) {
	if ev.Index < 0 || ev.Index >= len(tracks) {
		return model.Track{}, false
	}
	return tracks[ev.Index], true
}

// reconcile 返回匹配到的歌曲及所用策略名
func reconcile(ev Event, tracks []model.Track) (model.Track, string, bool) {
	for _, m := range matchers {
		if t, ok := m.match(ev, tracks); ok {
			return t, m.name, true
		}
	}
	return model.Track{}, "", false
}

func indexOf(tracks []model.Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
