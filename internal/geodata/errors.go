package geodata

import (
	"errors"
	"fmt"
)

// 文档注释：数据集加载失败
// 背景：网络错误、非 2xx 状态、非法 JSON、不符合 FeatureCollection 结构都归为此类；调用方用 errors.As 识别。
type LoadError struct {
	Region Region
	URL    string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load map %s from %s: %v", e.Region, e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StatusError：数据源返回非成功状态码
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d", e.Code) }

var errUnknownRegion = errors.New("no source configured for region")
