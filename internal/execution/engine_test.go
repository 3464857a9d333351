package execution

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/cloberr"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/quote"
)

func startEngine(t *testing.T, fake *fakeClient, cfg Config) (*Engine, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	src := quote.NewSource(fake, "tok", d("0.01"), 20*time.Millisecond,
		logrus.WithField("test", t.Name()))
	src.Start(ctx)

	engine := NewEngine(fake, src, cloberr.New(), cfg)
	go engine.Run(ctx)

	// 等第一个盘口快照
	require.Eventually(t, func() bool { return src.Latest() != nil },
		time.Second, 10*time.Millisecond, "quote never arrived")

	t.Cleanup(func() {
		cancel()
		src.Stop()
	})
	return engine, cancel
}

func execute(t *testing.T, engine *Engine) *ExecuteResult {
	t.Helper()
	reply := make(chan *ExecuteResult, 1)
	engine.Submit(&ExecuteCommand{Intent: testIntent(), Reply: reply})
	select {
	case res := <-reply:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("execute reply timeout")
		return nil
	}
}

func snapshotOf(t *testing.T, engine *Engine) *Snapshot {
	t.Helper()
	reply := make(chan *Snapshot, 1)
	engine.Submit(&QueryCommand{Reply: reply})
	select {
	case snap := <-reply:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("query reply timeout")
		return nil
	}
}

func waitPhase(t *testing.T, engine *Engine, want domain.StatusPhase) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap := snapshotOf(t, engine)
		return snap.Record != nil && snap.Record.Phase == want
	}, 3*time.Second, 15*time.Millisecond, "phase %s never reached", want)
}

func fastConfig() Config {
	return Config{
		PollInterval:    20 * time.Millisecond,
		GracePeriod:     40 * time.Millisecond,
		WatchdogTimeout: 10 * time.Second,
	}
}

func acceptedResp(orderID string) *types.OrderResponse {
	return &types.OrderResponse{
		Success: true,
		Raw:     json.RawMessage(`{"orderID":"` + orderID + `","success":true}`),
	}
}

// 完整生命周期：提交 → open → partial（数量修正）→ filled（终态，停止跟踪）
func TestEngine_Lifecycle(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-1")
	fake.setOrder(&types.OpenOrder{
		ID: "ord-1", Status: "LIVE", SizeMatched: "0", OriginalSize: "196", Price: "0.51",
	})

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.NoError(t, res.Err)
	assert.Equal(t, "ord-1", res.OrderID)
	assert.True(t, res.Order.LimitPrice.Equal(d("0.51")))

	waitPhase(t, engine, domain.PhaseOpen)

	// 部分成交：标签仍是 LIVE，引擎按数量修正为 partial
	fake.setOrder(&types.OpenOrder{
		ID: "ord-1", Status: "LIVE", SizeMatched: "50", OriginalSize: "196", Price: "0.51",
	})
	waitPhase(t, engine, domain.PhasePartial)

	fake.setOrder(&types.OpenOrder{
		ID: "ord-1", Status: "MATCHED", SizeMatched: "196", OriginalSize: "196", Price: "0.51",
	})
	waitPhase(t, engine, domain.PhaseFilled)

	// 终态后停止轮询
	calls := fake.getCalls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, fake.getCalls.Load(), "poller kept running after terminal phase")
}

// 宽限期内查无此单：乐观推进到 pending
func TestEngine_GraceAdvancesToPending(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-2")
	// GetOrder 一直返回 nil（交易所还没看到订单）

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.NoError(t, res.Err)

	waitPhase(t, engine, domain.PhasePending)
}

// 看门狗超时：阶段变 timed_out 且只发一次自动撤单
func TestEngine_WatchdogSingleCancel(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-3")
	fake.setOrder(&types.OpenOrder{
		ID: "ord-3", Status: "LIVE", SizeMatched: "0", OriginalSize: "196", Price: "0.51",
	})

	cfg := fastConfig()
	cfg.WatchdogTimeout = 120 * time.Millisecond
	engine, _ := startEngine(t, fake, cfg)

	res := execute(t, engine)
	require.NoError(t, res.Err)

	waitPhase(t, engine, domain.PhaseTimedOut)

	// 等所有在途回调落地后检查：自动撤单恰好一次
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), fake.cancelCalls.Load())

	// 终态锁存：迟到的轮询结果不能复活订单
	snap := snapshotOf(t, engine)
	assert.Equal(t, domain.PhaseTimedOut, snap.Record.Phase)
}

// 用户撤单：终态后被拒，并与网络失败区分
func TestEngine_UserCancelAfterFinal(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-4")
	fake.setOrder(&types.OpenOrder{
		ID: "ord-4", Status: "MATCHED", SizeMatched: "196", OriginalSize: "196", Price: "0.51",
	})

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.NoError(t, res.Err)
	waitPhase(t, engine, domain.PhaseFilled)

	reply := make(chan error, 1)
	engine.Submit(&CancelCommand{Reply: reply})
	err := <-reply
	assert.ErrorIs(t, err, ErrAlreadyFinal)
	assert.Equal(t, int32(0), fake.cancelCalls.Load())
}

// 在途订单存在时拒绝新的执行请求
func TestEngine_RejectsConcurrentExecute(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-5")
	fake.setOrder(&types.OpenOrder{
		ID: "ord-5", Status: "LIVE", SizeMatched: "0", OriginalSize: "196", Price: "0.51",
	})

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.NoError(t, res.Err)

	res2 := execute(t, engine)
	assert.ErrorIs(t, res2.Err, ErrOrderInFlight)
}

// 纸面模式：即时全量成交，不发真实订单
func TestEngine_DryRun(t *testing.T) {
	fake := newFakeClient()

	cfg := fastConfig()
	cfg.DryRun = true
	engine, _ := startEngine(t, fake, cfg)

	res := execute(t, engine)
	require.NoError(t, res.Err)
	waitPhase(t, engine, domain.PhaseFilled)

	snap := snapshotOf(t, engine)
	assert.True(t, snap.Record.FilledContracts.Equal(d("196")))
	assert.Equal(t, int32(0), fake.postCalls.Load())
}

// 提交被拒：结构化错误带用户可读文案
func TestEngine_SubmitRejectedClassified(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success:  false,
		ErrorMsg: "no orders found to match with fak order",
	}

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.Error(t, res.Err)
	require.NotNil(t, res.Classified)
	assert.Contains(t, res.Classified.UserMessage, "流动性")
	assert.True(t, res.Classified.Retryable)

	// 失败后允许重试
	fake.mu.Lock()
	fake.postResp = acceptedResp("ord-6")
	fake.mu.Unlock()
	fake.setOrder(&types.OpenOrder{
		ID: "ord-6", Status: "LIVE", SizeMatched: "0", OriginalSize: "196", Price: "0.51",
	})
	res2 := execute(t, engine)
	require.NoError(t, res2.Err)
}

// 拒单时 errorMsg 为空、错误码只在嵌套载荷里：分类器仍要找到它
func TestEngine_SubmitRejectedNestedCode(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = &types.OrderResponse{
		Success: false,
		Raw:     json.RawMessage(`{"error":{"code":"INVALID_ORDER_MIN_SIZE"}}`),
	}

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.Error(t, res.Err)
	require.NotNil(t, res.Classified)
	assert.Equal(t, "INVALID_ORDER_MIN_SIZE", res.Classified.Code)
	assert.Contains(t, res.Classified.UserMessage, "最小限制")
}

// Reset：终态订单清除后可以再次执行
func TestEngine_Reset(t *testing.T) {
	fake := newFakeClient()
	fake.postResp = acceptedResp("ord-7")
	fake.setOrder(&types.OpenOrder{
		ID: "ord-7", Status: "MATCHED", SizeMatched: "196", OriginalSize: "196", Price: "0.51",
	})

	engine, _ := startEngine(t, fake, fastConfig())

	res := execute(t, engine)
	require.NoError(t, res.Err)
	waitPhase(t, engine, domain.PhaseFilled)

	reply := make(chan error, 1)
	engine.Submit(&ResetCommand{Reply: reply})
	require.NoError(t, <-reply)

	snap := snapshotOf(t, engine)
	assert.Nil(t, snap.Record)

	res2 := execute(t, engine)
	require.NoError(t, res2.Err)
}
