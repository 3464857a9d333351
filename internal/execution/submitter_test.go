package execution

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/domain"
)

func TestExtractOrderID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`{"orderID":"a1","success":true}`, "a1"},
		{`{"orderId":"b2"}`, "b2"},
		{`{"id":"c3"}`, "c3"},
		{`{"orderID":"a1","id":"c3"}`, "a1"}, // orderID 优先
		{`{"success":true}`, ""},
		{``, ""},
		{`not json`, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ExtractOrderID(json.RawMessage(c.raw)), "raw=%s", c.raw)
	}
}

func testIntent() *domain.OrderIntent {
	return &domain.OrderIntent{
		IntentID:        "i1",
		TokenID:         "tok",
		Side:            types.SideBuy,
		InputMode:       domain.InputModeUSD,
		RawAmount:       d("100"),
		SlippagePercent: d("2"),
		Behavior:        types.OrderTypeFAK,
		CreatedAt:       time.Now(),
	}
}

func testOrder() *domain.FinalizedOrder {
	return &domain.FinalizedOrder{
		LimitPrice:       d("0.51"),
		Contracts:        d("196"),
		EstimatedMaxCost: d("99.96"),
	}
}

func TestSubmitter_Success(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success: true,
		Raw:     json.RawMessage(`{"orderID":"ord-1","success":true}`),
	}

	s := NewSubmitter(fake, false, logrus.WithField("test", t.Name()))
	res, err := s.Submit(context.Background(), testIntent(), testOrder())
	require.NoError(t, err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.Equal(t, int32(1), fake.postCalls.Load())
}

// 2xx 但提不出订单 ID：显式失败，不能当作提交成功
func TestSubmitter_NoOrderID(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success: true,
		Raw:     json.RawMessage(`{"success":true}`),
	}

	s := NewSubmitter(fake, false, logrus.WithField("test", t.Name()))
	_, err := s.Submit(context.Background(), testIntent(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no order id")
}

func TestSubmitter_Rejected(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success:  false,
		ErrorMsg: "not enough balance / allowance",
	}

	s := NewSubmitter(fake, false, logrus.WithField("test", t.Name()))
	_, err := s.Submit(context.Background(), testIntent(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough balance")
	// 只尝试一次，绝不自动重试
	assert.Equal(t, int32(1), fake.postCalls.Load())
}

// 拒单错误携带完整响应体：错误码可能只在嵌套载荷里而 errorMsg 为空
func TestSubmitter_RejectedCarriesRawPayload(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success: false,
		Raw:     json.RawMessage(`{"error":{"code":"INVALID_ORDER_MIN_SIZE"}}`),
	}

	s := NewSubmitter(fake, false, logrus.WithField("test", t.Name()))
	_, err := s.Submit(context.Background(), testIntent(), testOrder())
	require.Error(t, err)

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	require.NotNil(t, rej.Response)
	assert.Contains(t, string(rej.Response.Raw), "INVALID_ORDER_MIN_SIZE")
	assert.Equal(t, "order rejected", rej.Error())
}

// 纸面模式不发网络请求，生成合成订单 ID
func TestSubmitter_DryRun(t *testing.T) {
	fake := newFakeClient()

	s := NewSubmitter(fake, true, logrus.WithField("test", t.Name()))
	res, err := s.Submit(context.Background(), testIntent(), testOrder())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.OrderID, "paper-"), "id=%s", res.OrderID)
	assert.Equal(t, int32(0), fake.postCalls.Load())
}
