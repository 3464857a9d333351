// Package client 实现 CLOB REST 客户端。
//
// 订单签名由上游托管方完成，客户端只发送未签名的订单参数；这里的职责是
// 传输、限速与响应解析。
package client

import (
	"strings"
	"time"

	"github.com/betbot/tradecard/pkg/ratelimit"
)

// Client CLOB 客户端
type Client struct {
	host        string
	httpClient  *httpClient
	rateLimiter *ratelimit.Manager
}

// Config 客户端配置
type Config struct {
	Host    string
	Timeout time.Duration
}

// NewClient 创建新的 CLOB 客户端
func NewClient(cfg Config) *Client {
	host := strings.TrimSuffix(cfg.Host, "/")
	return &Client{
		host:        host,
		httpClient:  newHTTPClient(host, cfg.Timeout),
		rateLimiter: ratelimit.NewManager(),
	}
}

// Host 主机地址
func (c *Client) Host() string {
	return c.host
}
