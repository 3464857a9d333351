package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradecard/clob/types"
)

// abortingServer 每次请求都掐断连接，模拟超时后状态未知的传输层失败。
func abortingServer(calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		panic(http.ErrAbortHandler)
	}))
}

// 下单只许一次：POST 超时后订单可能已经落地，自动重试会造成重复下单
func TestPostOrder_NeverRetries(t *testing.T) {
	var calls atomic.Int32
	srv := abortingServer(&calls)
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL, Timeout: time.Second})
	_, err := c.PostOrder(context.Background(), &types.PlaceOrderRequest{
		TokenID:   "tok",
		Price:     "0.51",
		Size:      "10",
		Side:      types.SideBuy,
		OrderType: types.OrderTypeFAK,
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "order POST attempted %d times", calls.Load())
}

// 读接口幂等，传输层失败时照常重试
func TestGetOrderBook_RetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	srv := abortingServer(&calls)
	defer srv.Close()

	c := NewClient(Config{Host: srv.URL, Timeout: time.Second})
	_, err := c.GetOrderBook(context.Background(), "tok")
	require.Error(t, err)
	assert.Greater(t, calls.Load(), int32(1), "read endpoint did not retry")
}
