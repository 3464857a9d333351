package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// httpClient resty 封装。
//
// 读接口与撤单走 rc（带重试，幂等）；下单走 rcOnce（绝不重试）：
// POST 超时后订单可能已经落地，自动重试会造成重复下单。
//
// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY 等）。
type httpClient struct {
	rc     *resty.Client
	rcOnce *resty.Client
}

func newHTTPClient(host string, timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetRetryAfter(func(client *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时优先使用 Retry-After 头
			if resp.StatusCode() == 429 {
				if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
					if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
						return seconds, nil
					}
				}
				return 5 * time.Second, nil
			}
			return 0, nil
		})
	rcOnce := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout)
	return &httpClient{rc: rc, rcOnce: rcOnce}
}

func newRequest(rc *resty.Client, ctx context.Context) *resty.Request {
	r := rc.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	return r
}

func (h *httpClient) get(ctx context.Context, endpoint string, params map[string]string) (*resty.Response, error) {
	r := newRequest(h.rc, ctx)
	if params != nil {
		r.SetQueryParams(params)
	}
	return r.Get(endpoint)
}

// post 一次性提交，不做任何自动重试。
func (h *httpClient) post(ctx context.Context, endpoint string, body any) (*resty.Response, error) {
	return newRequest(h.rcOnce, ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(endpoint)
}

func (h *httpClient) delete(ctx context.Context, endpoint string, body any) (*resty.Response, error) {
	r := newRequest(h.rc, ctx)
	if body != nil {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(body)
	}
	return r.Delete(endpoint)
}

// parseResponse 解析 2xx 响应体；非 2xx 返回带响应体的错误。
func parseResponse(resp *resty.Response, out any) error {
	if !resp.IsSuccess() {
		return errors.Errorf("http %d: %s", resp.StatusCode(), resp.String())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
