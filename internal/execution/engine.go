// Package execution 实现订单生命周期引擎。
//
// 引擎是一个 actor：所有状态只被 Run 所在的单个 goroutine 读写，外部
// 通过命令通道交互。提交、轮询、撤单的网络请求在独立 goroutine 发出，
// 结果以事件送回循环，循环本身永不阻塞在网络上。
package execution

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/tradecard/internal/cloberr"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/ports"
	"github.com/betbot/tradecard/internal/pricing"
	"github.com/betbot/tradecard/internal/quote"
)

var engineLog = logrus.WithField("component", "trade_engine")

// 默认节奏参数
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultGracePeriod  = 300 * time.Millisecond
)

var (
	// ErrOrderInFlight 已有在途订单时拒绝新的执行请求
	ErrOrderInFlight = errors.New("an order is already in flight")
	// ErrNoOrder 当前没有可操作的订单
	ErrNoOrder = errors.New("no order in flight")
	// ErrAlreadyFinal 订单已达终态，用户撤单被拒绝。
	// 与撤单请求本身的网络失败严格区分。
	ErrAlreadyFinal = errors.New("order already final")
)

// Config 引擎节奏与行为配置
type Config struct {
	PollInterval    time.Duration   // 状态轮询间隔
	GracePeriod     time.Duration   // 提交后无数据的乐观宽限期
	WatchdogTimeout time.Duration   // 在途最长等待
	MinOrderUSD     decimal.Decimal // 最小名义金额
	DryRun          bool            // 纸面模式：不发真实订单
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = DefaultGracePeriod
	}
	if c.WatchdogTimeout <= 0 {
		c.WatchdogTimeout = DefaultWatchdogTimeout
	}
	if c.MinOrderUSD.Sign() <= 0 {
		c.MinOrderUSD = decimal.NewFromInt(1)
	}
}

// Command 引擎命令接口
type Command interface {
	CommandType() CommandType
}

// CommandType 命令类型
type CommandType string

const (
	CmdExecute CommandType = "execute" // 定价并提交订单
	CmdCancel  CommandType = "cancel"  // 用户撤单
	CmdReset   CommandType = "reset"   // 清除终态订单记录
	CmdQuery   CommandType = "query"   // 只读状态查询
)

// ExecuteCommand 执行交易：冻结价格数量并提交
type ExecuteCommand struct {
	Intent *domain.OrderIntent
	Reply  chan *ExecuteResult
}

func (c *ExecuteCommand) CommandType() CommandType { return CmdExecute }

// ExecuteResult 执行结果。Err 非 nil 时 Classified 带用户可读的错误信息。
type ExecuteResult struct {
	Order      *domain.FinalizedOrder
	OrderID    string
	Err        error
	Classified *cloberr.Classified
}

// CancelCommand 用户撤单
type CancelCommand struct {
	Reply chan error
}

func (c *CancelCommand) CommandType() CommandType { return CmdCancel }

// ResetCommand 清除记录。只有终态订单可以清除。
type ResetCommand struct {
	Reply chan error
}

func (c *ResetCommand) CommandType() CommandType { return CmdReset }

// QueryCommand 只读快照查询
type QueryCommand struct {
	Reply chan *Snapshot
}

func (c *QueryCommand) CommandType() CommandType { return CmdQuery }

// Snapshot 引擎状态快照（值拷贝，调用方可自由持有）
type Snapshot struct {
	Record *domain.OrderRecord
	Order  *domain.FinalizedOrder
}

// submitEvent 提交 goroutine 的回报
type submitEvent struct {
	result *SubmitResult
	err    error
}

// cancelEvent 撤单 goroutine 的回报
type cancelEvent struct {
	user bool // 用户撤单（需要回复）还是看门狗自动撤单
	err  error
}

// Engine 订单生命周期引擎
type Engine struct {
	client     ports.TradingClient
	quotes     *quote.Source
	submitter  *Submitter
	classifier *cloberr.Classifier
	cfg        Config
	log        *logrus.Entry

	cmdChan       chan Command
	submitEvents  chan submitEvent
	pollResults   chan pollResult
	cancelEvents  chan cancelEvent
	updates       chan Snapshot
	pollSlot      requestSlot
	wd            *watchdog
	grace         *time.Timer
	graceArmed    bool
	pollSkip      *inFlightGate

	// 以下状态只由 Run goroutine 访问
	intent           *domain.OrderIntent
	order            *domain.FinalizedOrder
	record           *domain.OrderRecord
	pendingExec      *ExecuteCommand
	pendingCancel    *CancelCommand
	autoCancelIssued bool
}

// inFlightGate 单飞门闩：同一时刻最多一个在途状态查询。
type inFlightGate struct{ busy bool }

func (g *inFlightGate) tryAcquire() bool {
	if g.busy {
		return false
	}
	g.busy = true
	return true
}
func (g *inFlightGate) release() { g.busy = false }

func NewEngine(client ports.TradingClient, quotes *quote.Source, classifier *cloberr.Classifier, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		client:       client,
		quotes:       quotes,
		submitter:    NewSubmitter(client, cfg.DryRun, engineLog),
		classifier:   classifier,
		cfg:          cfg,
		log:          engineLog,
		cmdChan:      make(chan Command, 16),
		submitEvents: make(chan submitEvent, 1),
		pollResults:  make(chan pollResult, 4),
		cancelEvents: make(chan cancelEvent, 2),
		updates:      make(chan Snapshot, 8),
		wd:           newWatchdog(cfg.WatchdogTimeout),
		pollSkip:     &inFlightGate{},
	}
}

// Submit 投递命令。引擎循环已退出时命令被丢弃，调用方通过 Reply 超时感知。
func (e *Engine) Submit(cmd Command) {
	select {
	case e.cmdChan <- cmd:
	default:
		e.log.Warn("命令通道已满，丢弃命令")
	}
}

// Updates 状态变化推送。消费慢时丢弃旧快照。
func (e *Engine) Updates() <-chan Snapshot {
	return e.updates
}

// Run 引擎主循环。ctx 取消时确定性拆除所有定时器与在途请求。
func (e *Engine) Run(ctx context.Context) {
	pollTicker := time.NewTicker(e.cfg.PollInterval)
	defer pollTicker.Stop()
	defer e.teardown()

	for {
		select {
		case cmd := <-e.cmdChan:
			e.handleCommand(ctx, cmd)
		case ev := <-e.submitEvents:
			e.handleSubmitEvent(ev)
		case res := <-e.pollResults:
			e.handlePollResult(res)
		case ev := <-e.cancelEvents:
			e.handleCancelEvent(ctx, ev)
		case <-e.graceC():
			e.handleGraceExpired()
		case <-e.wd.C():
			e.handleWatchdogExpired(ctx)
		case <-pollTicker.C:
			e.maybePoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case *ExecuteCommand:
		e.handleExecute(ctx, c)
	case *CancelCommand:
		e.handleCancel(ctx, c)
	case *ResetCommand:
		e.handleReset(c)
	case *QueryCommand:
		c.Reply <- e.snapshot()
	default:
		e.log.Warnf("未知命令类型: %T", cmd)
	}
}

func (e *Engine) handleExecute(ctx context.Context, cmd *ExecuteCommand) {
	if e.record != nil && !e.record.Phase.IsTerminal() {
		cmd.Reply <- &ExecuteResult{Err: ErrOrderInFlight}
		return
	}
	if e.pendingExec != nil {
		cmd.Reply <- &ExecuteResult{Err: ErrOrderInFlight}
		return
	}

	q := e.quotes.Latest()
	order, err := pricing.Finalize(q, cmd.Intent, e.cfg.MinOrderUSD)
	if err != nil {
		cmd.Reply <- &ExecuteResult{Err: err}
		return
	}

	// 冻结：此后盘口刷新不影响已定价的订单
	e.intent = cmd.Intent
	e.order = order
	e.record = nil
	e.autoCancelIssued = false
	e.pendingExec = cmd

	go func() {
		result, err := e.submitter.Submit(ctx, cmd.Intent, order)
		e.submitEvents <- submitEvent{result: result, err: err}
	}()
}

func (e *Engine) handleSubmitEvent(ev submitEvent) {
	cmd := e.pendingExec
	e.pendingExec = nil
	if cmd == nil {
		return
	}

	if ev.err != nil {
		res := &ExecuteResult{Order: e.order, Err: ev.err}
		if e.classifier != nil {
			// 拒单带完整响应体：错误码可能只在嵌套载荷里
			var rej *RejectedError
			if errors.As(ev.err, &rej) {
				res.Classified = e.classifier.ClassifyResponse(rej.Response)
			} else {
				res.Classified = e.classifier.Classify(ev.err.Error(), nil)
			}
		}
		e.intent = nil
		e.order = nil
		cmd.Reply <- res
		return
	}

	e.record = &domain.OrderRecord{
		OrderID:        ev.result.OrderID,
		Phase:          domain.PhaseSubmitted,
		TotalContracts: e.order.Contracts,
		SubmittedAt:    ev.result.SubmittedAt,
	}
	e.armGrace()
	e.wd.Arm()
	e.emitUpdate()

	// 纸面模式即时全量成交，不再轮询
	if e.cfg.DryRun {
		e.record.FilledContracts = e.order.Contracts
		e.record.FillPrice = e.order.LimitPrice
		e.applyPhase(domain.PhaseFilled)
	}

	cmd.Reply <- &ExecuteResult{Order: e.order, OrderID: ev.result.OrderID}
}

func (e *Engine) handleCancel(ctx context.Context, cmd *CancelCommand) {
	if e.record == nil {
		cmd.Reply <- ErrNoOrder
		return
	}
	if e.record.Phase.IsTerminal() {
		cmd.Reply <- ErrAlreadyFinal
		return
	}
	if e.pendingCancel != nil {
		cmd.Reply <- errors.New("cancellation already in progress")
		return
	}
	e.pendingCancel = cmd
	e.issueCancel(ctx, true)
}

func (e *Engine) issueCancel(ctx context.Context, user bool) {
	orderID := e.record.OrderID
	go func() {
		_, err := e.client.CancelOrder(ctx, orderID)
		e.cancelEvents <- cancelEvent{user: user, err: err}
	}()
}

func (e *Engine) handleCancelEvent(ctx context.Context, ev cancelEvent) {
	if ev.user {
		cmd := e.pendingCancel
		e.pendingCancel = nil
		if cmd != nil {
			if ev.err != nil {
				cmd.Reply <- errors.Wrap(ev.err, "cancel request failed")
			} else {
				cmd.Reply <- nil
			}
		}
	} else if ev.err != nil {
		e.log.WithError(ev.err).Warn("自动撤单失败")
	}

	// 撤单与成交存在固有竞态：撤单请求发出到响应之间订单可能已成交。
	// 无论撤单结果如何都重读一次状态，绝不直接假定已取消。
	if e.record != nil && e.record.OrderID != "" {
		e.issuePoll(ctx, true)
	}
	go func() {
		if err := e.client.RefreshOrders(ctx); err != nil {
			e.log.WithError(err).Debug("订单列表刷新通知失败")
		}
	}()
}

func (e *Engine) handleReset(cmd *ResetCommand) {
	if e.record != nil && !e.record.Phase.IsTerminal() {
		cmd.Reply <- errors.New("order still in flight, cancel it first")
		return
	}
	e.stopTracking()
	e.intent = nil
	e.order = nil
	e.record = nil
	e.autoCancelIssued = false
	cmd.Reply <- nil
}

func (e *Engine) handleGraceExpired() {
	e.graceArmed = false
	if e.record == nil {
		return
	}
	// 宽限期内没有任何状态数据：乐观推进到 pending，避免界面看起来卡死
	if e.record.Phase == domain.PhaseSubmitted {
		e.applyPhase(domain.PhasePending)
	}
}

func (e *Engine) handleWatchdogExpired(ctx context.Context) {
	if e.record == nil || e.record.Phase.IsTerminal() {
		return
	}
	e.log.WithField("order_id", e.record.OrderID).Warn("订单在途超时，自动撤单")
	e.applyPhase(domain.PhaseTimedOut)

	// 超时只触发一次自动撤单
	if !e.autoCancelIssued {
		e.autoCancelIssued = true
		e.issueCancel(ctx, false)
	}
}

func (e *Engine) maybePoll(ctx context.Context) {
	if e.record == nil || e.record.OrderID == "" || e.record.Phase.IsTerminal() {
		return
	}
	e.issuePoll(ctx, false)
}

// issuePoll 发起一次状态查询。force 用于撤单后的强制重读（即使已终态，
// 成交数量仍需要修正）。
func (e *Engine) issuePoll(ctx context.Context, force bool) {
	if !force && !e.pollSkip.tryAcquire() {
		return
	}
	pollCtx, seq := e.pollSlot.Begin(ctx)
	orderID := e.record.OrderID
	e.record.LastPolledAt = time.Now()

	go func() {
		defer e.pollSlot.Done(seq)
		e.pollResults <- e.buildPollResult(pollCtx, seq, orderID)
	}()
}

func (e *Engine) buildPollResult(ctx context.Context, seq uint64, orderID string) pollResult {
	open, err := e.client.GetOrder(ctx, orderID)
	if err != nil {
		return pollResult{seq: seq, err: err}
	}
	if open == nil {
		return pollResult{seq: seq, notFound: true}
	}

	filled, _ := decimal.NewFromString(open.SizeMatched)
	total, _ := decimal.NewFromString(open.OriginalSize)
	price, _ := decimal.NewFromString(open.Price)

	return pollResult{
		seq:    seq,
		phase:  NormalizePhase(open.Status, filled, total),
		filled: filled,
		total:  total,
		price:  price,
	}
}

func (e *Engine) handlePollResult(res pollResult) {
	e.pollSkip.release()

	if e.record == nil {
		return
	}
	if res.err != nil {
		// 单次查询失败不致命，下个 tick 重试
		e.log.WithError(res.err).Debug("订单状态查询失败")
		return
	}
	if res.notFound {
		// 提交确认前交易所可能查不到订单；宽限期逻辑负责推进 pending
		return
	}

	if res.filled.Sign() > 0 {
		e.record.FilledContracts = res.filled
		e.record.FillPrice = res.price
	}
	if res.total.Sign() > 0 {
		e.record.TotalContracts = res.total
	}
	e.applyPhase(res.phase)
}

// applyPhase 应用阶段迁移。终态由 OrderRecord 锁存，迟到结果被丢弃。
func (e *Engine) applyPhase(next domain.StatusPhase) {
	if !e.record.ApplyPhase(next) {
		return
	}
	e.log.WithFields(logrus.Fields{
		"order_id": e.record.OrderID,
		"phase":    next,
		"filled":   e.record.FilledContracts.String(),
	}).Info("订单阶段变化")

	if next.IsTerminal() {
		e.stopTracking()
	}
	e.emitUpdate()
}

// stopTracking 到达终态：停掉宽限与看门狗，放弃在途查询。
func (e *Engine) stopTracking() {
	e.disarmGrace()
	e.wd.Disarm()
	e.pollSlot.Abort()
	e.pollSkip.release()
}

func (e *Engine) teardown() {
	e.stopTracking()
}

func (e *Engine) armGrace() {
	e.disarmGrace()
	e.grace = time.NewTimer(e.cfg.GracePeriod)
	e.graceArmed = true
}

func (e *Engine) disarmGrace() {
	if e.grace != nil {
		if !e.grace.Stop() {
			select {
			case <-e.grace.C:
			default:
			}
		}
	}
	e.graceArmed = false
}

func (e *Engine) graceC() <-chan time.Time {
	if !e.graceArmed || e.grace == nil {
		return nil
	}
	return e.grace.C
}

func (e *Engine) snapshot() *Snapshot {
	snap := &Snapshot{}
	if e.record != nil {
		r := *e.record
		snap.Record = &r
	}
	if e.order != nil {
		o := *e.order
		snap.Order = &o
	}
	return snap
}

func (e *Engine) emitUpdate() {
	snap := e.snapshot()
	select {
	case e.updates <- *snap:
	default:
	}
}
