package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"Bt1QPlayer/model"

	"github.com/minio/minio-go/v7"
)

// audioQuality 本地曲库支持的音频扩展名及其展示标签
var audioQuality = map[string]string{
	".flac": "FLAC",
	".wav":  "WAV",
	".m4a":  "AAC",
	".mp3":  "MP3",
	".ogg":  "OGG",
}

// IsAudioObject 根据扩展名判断对象是否为可播放音频
func IsAudioObject(key string) bool {
	_, ok := audioQuality[strings.ToLower(path.Ext(key))]
	return ok
}

// TrackFromObject 将存储桶对象转为本地曲目，对象名即曲目 ID
// 对象名形如 "艺术家/专辑/标题.flac" 时从路径中取艺术家与专辑
func TrackFromObject(key string) model.Track {
	ext := path.Ext(key)
	parts := strings.Split(strings.TrimSuffix(key, ext), "/")

	t := model.Track{
		ID:           key,
		Title:        parts[len(parts)-1],
		QualityLabel: audioQuality[strings.ToLower(ext)],
		Source:       model.SourceLocal,
	}
	if len(parts) >= 3 {
		t.Artist = parts[len(parts)-3]
		t.Album = parts[len(parts)-2]
	} else if len(parts) == 2 {
		t.Artist = parts[0]
	}
	return t
}

// ListLocalTracks 列出存储桶中 prefix 下的所有音频对象
func ListLocalTracks(ctx context.Context, client *minio.Client, bucket, prefix string) ([]model.Track, error) {
	var tracks []model.Track
	for object := range client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		if !IsAudioObject(object.Key) {
			continue
		}
		tracks = append(tracks, TrackFromObject(object.Key))
	}
	return tracks, nil
}
