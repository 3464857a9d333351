// Package quote 周期性拉取盘口，为定价提供最新 Quote 快照。
//
// 节流模型：固定间隔触发，若上一次请求仍在途则跳过本次触发（single
// flight），绝不排队；请求慢于间隔时自然降频而不是堆积。
package quote

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/ports"
)

// DefaultPollInterval 盘口轮询间隔
const DefaultPollInterval = 250 * time.Millisecond

// Source 单个 token 的盘口源。
//
// Latest 返回最近一次成功的快照（last-good）：拉取失败时保留旧值，
// 短暂的网络抖动不会让盘口消失。
type Source struct {
	client   ports.TradingClient
	tokenID  string
	tickSize decimal.Decimal
	interval time.Duration
	log      *logrus.Entry

	inflight *inFlightLimiter

	mu      sync.RWMutex
	last    *domain.Quote      // 最近一次成功的快照
	stopped bool               // Stop 之后迟到的拉取结果一律丢弃
	updates chan *domain.Quote // 推送给引擎，满则丢弃（引擎随后读 Latest）

	cancel context.CancelFunc // 取消在途请求，Start 时设置
	wg     sync.WaitGroup     // 在途拉取 goroutine

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSource 创建盘口源。tickSize 来自市场元数据（见 ResolveTickSize）。
func NewSource(client ports.TradingClient, tokenID string, tickSize decimal.Decimal, interval time.Duration, log *logrus.Entry) *Source {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Source{
		client:   client,
		tokenID:  tokenID,
		tickSize: tickSize,
		interval: interval,
		log:      log,
		inflight: newInFlightLimiter(1),
		updates:  make(chan *domain.Quote, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// ResolveTickSize 从市场元数据解析 tick size。
// 解析失败时退回最细档 0.0001（宁可过细也不把限价取整到更粗的档）。
func ResolveTickSize(ctx context.Context, client ports.TradingClient, conditionID string) decimal.Decimal {
	fallback := decimal.RequireFromString(string(types.TickSize00001))
	market, err := client.GetMarket(ctx, conditionID)
	if err != nil || market == nil || market.TickSize == "" {
		return fallback
	}
	tick, err := decimal.NewFromString(market.TickSize)
	if err != nil || tick.Sign() <= 0 {
		return fallback
	}
	return tick
}

// Start 启动轮询循环。重复调用是未定义行为，调用方保证只启动一次。
func (s *Source) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop 停止轮询，取消在途请求并等待全部 goroutine 退出。
// 返回后 Latest 不再变化，也不再有新推送。
func (s *Source) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	if s.cancel != nil {
		s.cancel()
	}
	<-s.doneCh
	s.wg.Wait()
}

// Latest 返回最近一次成功的快照，尚无数据时返回 nil。
func (s *Source) Latest() *domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Updates 快照推送通道。消费慢时丢弃旧推送，不阻塞轮询循环。
func (s *Source) Updates() <-chan *domain.Quote {
	return s.updates
}

func (s *Source) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 启动后立即拉一次，不等第一个 tick；异步发出，慢端点不阻塞循环
	s.spawnPoll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.spawnPoll(ctx)
		}
	}
}

// spawnPoll 异步发出一次拉取；上一次请求仍在途则跳过本次触发。
func (s *Source) spawnPoll(ctx context.Context) {
	if !s.inflight.TryAcquire() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inflight.Release()
		s.pollOnce(ctx)
	}()
}

func (s *Source) pollOnce(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, s.interval*4)
	defer cancel()

	book, err := s.client.GetOrderBook(reqCtx, s.tokenID)
	if err != nil {
		// 失败保留 last-good，只记日志
		s.log.WithError(err).Debug("盘口拉取失败，保留上一次快照")
		return
	}

	q := s.buildQuote(book)

	// 单边或空订单簿：补最新成交价作为备选参考
	if q.BestBid == nil || q.BestAsk == nil {
		if mp, err := s.client.GetLastTradePrice(reqCtx, s.tokenID); err == nil && mp != nil {
			if last := decimal.NewFromFloat(mp.Price); last.Sign() > 0 {
				q.LastTrade = &last
			}
		}
	}

	s.store(q)
}

// buildQuote 把订单簿摘要转换为 Quote。
// 摘要里价格是字符串且排序方向不保证，这里显式取 bids 最高价、asks 最低价。
func (s *Source) buildQuote(book *types.OrderBookSummary) *domain.Quote {
	q := &domain.Quote{
		TickSize:   s.tickSize,
		ObservedAt: time.Now(),
	}
	if book == nil {
		return q
	}
	if tick, err := decimal.NewFromString(book.TickSize); err == nil && tick.Sign() > 0 {
		q.TickSize = tick
	}
	q.BestBid = bestPrice(book.Bids, true)
	q.BestAsk = bestPrice(book.Asks, false)
	return q
}

func bestPrice(levels []types.OrderSummary, highest bool) *decimal.Decimal {
	var best *decimal.Decimal
	for _, lvl := range levels {
		p, err := decimal.NewFromString(lvl.Price)
		if err != nil || p.Sign() <= 0 {
			continue
		}
		if best == nil || (highest && p.GreaterThan(*best)) || (!highest && p.LessThan(*best)) {
			v := p
			best = &v
		}
	}
	return best
}

func (s *Source) store(q *domain.Quote) {
	s.mu.Lock()
	if s.stopped {
		// Stop 已返回或正在返回，迟到的结果不发布
		s.mu.Unlock()
		return
	}
	s.last = q
	s.mu.Unlock()

	// 推送满了就丢，引擎会读 Latest
	select {
	case s.updates <- q:
	default:
	}
}
