package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Bt1QPlayer/model"

	"github.com/minio/minio-go/v7"
)

// MinioLocal 本地曲库音源
// 本地歌曲的 ID 即为存储桶中的对象名，播放地址为预签名 GET 地址。
// 客户端配置了 Region 时签名完全在本地完成，不产生网络请求。
type MinioLocal struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinioLocal 创建本地音源
func NewMinioLocal(client *minio.Client, bucket string, expiry time.Duration) *MinioLocal {
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &MinioLocal{client: client, bucket: bucket, expiry: expiry}
}

func (m *MinioLocal) Source() model.Source { return model.SourceLocal }

// DirectURL 生成预签名播放地址
func (m *MinioLocal) DirectURL(ctx context.Context, track model.Track) (string, error) {
	objectName := strings.TrimPrefix(track.ID, "/")
	if objectName == "" {
		return "", fmt.Errorf("local track has empty object name")
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("预签名失败: %w", err)
	}
	return u.String(), nil
}
