package model

import "time"

// LikedTrack 收藏的歌曲
type LikedTrack struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TrackID   string    `json:"trackId" gorm:"size:64;not null;uniqueIndex:idx_liked_track"`
	Source    Source    `json:"source" gorm:"size:20;not null;uniqueIndex:idx_liked_track"`
	Title     string    `json:"title" gorm:"size:255"`
	Artist    string    `json:"artist" gorm:"size:255"`
	Album     string    `json:"album" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName 指定表名
func (LikedTrack) TableName() string {
	return "liked_tracks"
}

// Preference 键值偏好设置
type Preference struct {
	Key       string    `json:"key" gorm:"primaryKey;size:64"`
	Value     string    `json:"value" gorm:"size:255"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Preference) TableName() string {
	return "preferences"
}

// PrefMusicSource 音源偏好的键
const PrefMusicSource = "music_source"
