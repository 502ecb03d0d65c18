package repository

import (
	"context"
	"errors"

	"Bt1QPlayer/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LibraryRepository 曲库数据访问接口（收藏、偏好）
type LibraryRepository interface {
	LikeTrack(ctx context.Context, track *model.Track) error
	UnlikeTrack(ctx context.Context, trackID string, source model.Source) error
	IsLiked(ctx context.Context, trackID string, source model.Source) (bool, error)
	ListLiked(ctx context.Context, limit, offset int) ([]*model.LikedTrack, error)

	GetPreference(ctx context.Context, key string) (string, error)
	SetPreference(ctx context.Context, key, value string) error
}

// gormLibraryRepository GORM 实现
type gormLibraryRepository struct {
	db *gorm.DB
}

// NewGormLibraryRepository 创建 GORM 曲库仓库
func NewGormLibraryRepository(db *gorm.DB) LibraryRepository {
	return &gormLibraryRepository{db: db}
}

// LikeTrack 收藏歌曲，重复收藏时更新元数据
func (r *gormLibraryRepository) LikeTrack(ctx context.Context, track *model.Track) error {
	liked := &model.LikedTrack{
		TrackID: track.ID,
		Source:  track.Source,
		Title:   truncate(track.Title, 255),
		Artist:  truncate(track.Artist, 255),
		Album:   truncate(track.Album, 255),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "track_id"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "album"}),
		}).
		Create(liked).Error
}

// UnlikeTrack 取消收藏
func (r *gormLibraryRepository) UnlikeTrack(ctx context.Context, trackID string, source model.Source) error {
	return r.db.WithContext(ctx).
		Where("track_id = ? AND source = ?", trackID, source).
		Delete(&model.LikedTrack{}).Error
}

// IsLiked 是否已收藏
func (r *gormLibraryRepository) IsLiked(ctx context.Context, trackID string, source model.Source) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LikedTrack{}).
		Where("track_id = ? AND source = ?", trackID, source).
		Count(&count).Error
	return count > 0, err
}

// ListLiked 按收藏时间倒序列出
func (r *gormLibraryRepository) ListLiked(ctx context.Context, limit, offset int) ([]*model.LikedTrack, error) {
	var tracks []*model.LikedTrack
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tracks).Error
	return tracks, err
}

// GetPreference 读取偏好，不存在时返回空字符串
func (r *gormLibraryRepository) GetPreference(ctx context.Context, key string) (string, error) {
	var pref model.Preference
	err := r.db.WithContext(ctx).Where("`key` = ?", key).First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return pref.Value, nil
}

// SetPreference 写入偏好（upsert）
func (r *gormLibraryRepository) SetPreference(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model.Preference{Key: key, Value: value}).Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
