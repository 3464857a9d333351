package execution

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/betbot/tradecard/clob/types"
)

// fakeClient 测试替身。字段可在用例中途改写（带锁）。
type fakeClient struct {
	mu sync.Mutex

	book      *types.OrderBookSummary
	market    *types.Market
	lastPrice *types.MarketPrice

	postResp *types.OrderResponse
	postErr  error

	order    *types.OpenOrder
	orderErr error

	cancelErr error

	postCalls    atomic.Int32
	cancelCalls  atomic.Int32
	getCalls     atomic.Int32
	bookCalls    atomic.Int32
	refreshCalls atomic.Int32
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		book: &types.OrderBookSummary{
			TickSize: "0.01",
			Bids:     []types.OrderSummary{{Price: "0.49", Size: "500"}},
			Asks:     []types.OrderSummary{{Price: "0.50", Size: "500"}},
		},
	}
}

func (f *fakeClient) setOrder(o *types.OpenOrder) {
	f.mu.Lock()
	f.order = o
	f.mu.Unlock()
}

func (f *fakeClient) GetOrderBook(ctx context.Context, tokenID string) (*types.OrderBookSummary, error) {
	f.bookCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.book, nil
}

func (f *fakeClient) GetMarket(ctx context.Context, conditionID string) (*types.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.market, nil
}

func (f *fakeClient) GetLastTradePrice(ctx context.Context, tokenID string) (*types.MarketPrice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrice, nil
}

func (f *fakeClient) PostOrder(ctx context.Context, req *types.PlaceOrderRequest) (*types.OrderResponse, error) {
	f.postCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postResp, f.postErr
}

func (f *fakeClient) GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order, f.orderErr
}

func (f *fakeClient) CancelOrder(ctx context.Context, orderID string) (*types.CancelResponse, error) {
	f.cancelCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	return &types.CancelResponse{Success: true}, nil
}

func (f *fakeClient) RefreshOrders(ctx context.Context) error {
	f.refreshCalls.Add(1)
	return nil
}
