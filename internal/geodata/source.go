package geodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tiny-explorers/internal/config"
	"tiny-explorers/internal/logger"
)

// Fetcher：按地址读取原始载荷
type Fetcher interface {
	Fetch(ctx context.Context, u string) ([]byte, error)
}

// 文档注释：HTTP 数据源
// 约束：非 2xx 返回 *StatusError；Client 为空时使用带超时的默认客户端
type HTTPFetcher struct {
	Client *http.Client
}

func (h *HTTPFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/geo+json, application/json")
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// FileFetcher：file:// 或裸路径
type FileFetcher struct{}

func (FileFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	p := strings.TrimPrefix(u, "file://")
	return os.ReadFile(p)
}

// 文档注释：对象存储数据源（s3://bucket/key）
// 背景：部署时可把数据集放在 MinIO 中，与静态资源分离。
type MinioFetcher struct {
	client *minio.Client
}

func NewMinioFetcher(cfg config.Minio) (*MinioFetcher, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioFetcher{client: c}, nil
}

func (m *MinioFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	pu, err := url.Parse(u)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(pu.Path, "/")
	obj, err := m.client.GetObject(ctx, pu.Host, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", pu.Host, key, err)
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// SchemeFetcher：按协议分派；S3 为空时 s3:// 地址报错
type SchemeFetcher struct {
	HTTP Fetcher
	File Fetcher
	S3   Fetcher
}

func (s *SchemeFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return s.HTTP.Fetch(ctx, u)
	case strings.HasPrefix(u, "s3://"):
		if s.S3 == nil {
			return nil, fmt.Errorf("no object store configured for %s", u)
		}
		return s.S3.Fetch(ctx, u)
	default:
		return s.File.Fetch(ctx, u)
	}
}

// NewFetcherFromConfig：组装生产环境数据源；MinIO 未配置或初始化失败时仅记录日志
func NewFetcherFromConfig(cfg *config.Config) *SchemeFetcher {
	sf := &SchemeFetcher{
		HTTP: &HTTPFetcher{Client: &http.Client{Timeout: cfg.FetchTimeout}},
		File: FileFetcher{},
	}
	if cfg.Minio.Endpoint != "" {
		if mf, err := NewMinioFetcher(cfg.Minio); err == nil {
			sf.S3 = mf
			logger.L().Info("map_source_minio", "endpoint", cfg.Minio.Endpoint)
		} else {
			logger.L().Error("map_source_minio_error", "err", err)
		}
	}
	return sf
}
