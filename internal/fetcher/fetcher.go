package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// 背景图下载器：单次尝试、有限超时。
// 是否重试由调用方（编排器）决定，这里不做任何重试。

const defaultTimeout = 30 * time.Second

// Error 描述一次下载失败。StatusCode 为 0 表示网络层错误或超时。
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client 拉取远端图片到内存。
type Client struct {
	httpClient *http.Client
	now        func() time.Time
}

// NewClient 构造下载器，超时固定为 30 秒。
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
}

// Fetch 下载 rawURL 指向的图片，返回字节与派生文件名。
// 文件名取 URL 路径末段并附加 Unix 时间戳，保证同一 URL 重复下载时名字不撞。
func (c *Client) Fetch(ctx context.Context, rawURL string) (data []byte, filename string, err error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, "", &Error{URL: rawURL, Err: fmt.Errorf("empty url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", &Error{URL: rawURL, Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &Error{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &Error{URL: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	return data, c.deriveFilename(rawURL), nil
}

func (c *Client) deriveFilename(rawURL string) string {
	base := "image"
	if parsed, err := url.Parse(rawURL); err == nil {
		last := path.Base(parsed.Path)
		if dot := strings.Index(last, "."); dot > 0 {
			last = last[:dot]
		}
		if last != "" && last != "." && last != "/" {
			base = last
		}
	}
	return fmt.Sprintf("%s_%d", base, c.now().Unix())
}
