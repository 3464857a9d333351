package execution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/ports"
)

// Submitter 负责把冻结后的订单发往交易所。
//
// 只尝试一次：提交层不做重试，网络不确定时重复提交可能导致双重下单，
// 失败交给上层报告给用户决定。
type Submitter struct {
	client ports.TradingClient
	dryRun bool
	log    *logrus.Entry
}

func NewSubmitter(client ports.TradingClient, dryRun bool, log *logrus.Entry) *Submitter {
	return &Submitter{client: client, dryRun: dryRun, log: log}
}

// SubmitResult 提交结果。Err 为 nil 时 OrderID 一定非空。
type SubmitResult struct {
	OrderID     string
	Raw         json.RawMessage
	SubmittedAt time.Time
}

// RejectedError 交易所拒单。
// 完整保留响应：错误码可能只出现在嵌套载荷里而 errorMsg 为空，
// 分类器需要原始响应体才能找到它。
type RejectedError struct {
	Response *types.OrderResponse
}

func (e *RejectedError) Error() string {
	if e.Response == nil || e.Response.ErrorMsg == "" {
		return "order rejected"
	}
	return "order rejected: " + e.Response.ErrorMsg
}

// Submit 提交订单并返回交易所订单 ID。
//
// 2xx 响应里提不出可用订单 ID 视为显式失败：没有 ID 就无法轮询状态，
// 也无法撤单，这样的订单不能当作提交成功。
func (s *Submitter) Submit(ctx context.Context, intent *domain.OrderIntent, order *domain.FinalizedOrder) (*SubmitResult, error) {
	if s.dryRun {
		return s.submitPaper(intent, order)
	}

	req := &types.PlaceOrderRequest{
		TokenID:   intent.TokenID,
		Price:     order.LimitPrice.String(),
		Size:      order.Contracts.String(),
		Side:      intent.Side,
		OrderType: intent.Behavior,
	}

	resp, err := s.client.PostOrder(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "post order")
	}
	if !resp.Success {
		return nil, &RejectedError{Response: resp}
	}

	orderID := ExtractOrderID(resp.Raw)
	if orderID == "" {
		return nil, errors.New("order accepted but response carries no order id")
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"side":     intent.Side,
		"price":    req.Price,
		"size":     req.Size,
	}).Info("订单已提交")

	return &SubmitResult{
		OrderID:     orderID,
		Raw:         resp.Raw,
		SubmittedAt: time.Now(),
	}, nil
}

// submitPaper 纸面模式：不发网络请求，生成合成订单 ID。
func (s *Submitter) submitPaper(intent *domain.OrderIntent, order *domain.FinalizedOrder) (*SubmitResult, error) {
	orderID := "paper-" + uuid.NewString()
	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"side":     intent.Side,
		"price":    order.LimitPrice.String(),
		"size":     order.Contracts.String(),
	}).Info("[纸面] 订单已提交")
	return &SubmitResult{OrderID: orderID, SubmittedAt: time.Now()}, nil
}

// ExtractOrderID 从原始响应体提取订单 ID。
// 上游字段名不稳定，按 orderID → orderId → id 的顺序尝试。
func ExtractOrderID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var body struct {
		OrderID  string `json:"orderID"`
		OrderId2 string `json:"orderId"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	switch {
	case body.OrderID != "":
		return body.OrderID
	case body.OrderId2 != "":
		return body.OrderId2
	default:
		return body.ID
	}
}
