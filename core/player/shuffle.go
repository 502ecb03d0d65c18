package player

import (
	"math/rand"

	"Bt1QPlayer/model"
)

// shuffleKeepingCurrent 将当前歌曲固定在第 0 位，其余部分做 Fisher–Yates 洗牌
func shuffleKeepingCurrent(tracks []model.Track, current int, rng *rand.Rand) []model.Track {
	if len(tracks) == 0 {
		return nil
	}
	if current < 0 || current >= len(tracks) {
		current = 0
	}

	out := make([]model.Track, 0, len(tracks))
	out = append(out, tracks[current])
	out = append(out, tracks[:current]...)
	out = append(out, tracks[current+1:]...)

	rest := out[1:]
	for i := len(rest) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		rest[i], rest[j] = rest[j], rest[i]
	}
	return out
}

// rotate 以 start 为起点旋转队列：[start, start+1 ..., 0 ... start-1]
func rotate(tracks []model.Track, start int) []model.Track {
	out := make([]model.Track, 0, len(tracks))
	out = append(out, tracks[start:]...)
	out = append(out, tracks[:start]...)
	return out
}
