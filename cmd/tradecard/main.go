package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/betbot/tradecard/clob/client"
	"github.com/betbot/tradecard/clob/types"
	"github.com/betbot/tradecard/internal/cloberr"
	"github.com/betbot/tradecard/internal/domain"
	"github.com/betbot/tradecard/internal/execution"
	"github.com/betbot/tradecard/internal/pricing"
	"github.com/betbot/tradecard/internal/quote"
	"github.com/betbot/tradecard/pkg/config"
	"github.com/betbot/tradecard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（.yaml/.yml）")
	tokenID := flag.String("token", "", "outcome token ID")
	conditionID := flag.String("condition", "", "condition ID（用于解析 tick size）")
	side := flag.String("side", "BUY", "方向：BUY 或 SELL")
	amount := flag.String("amount", "", "金额（USD 模式）或合约数（contracts 模式）")
	mode := flag.String("mode", "usd", "输入口径：usd 或 contracts")
	slippage := flag.String("slippage", "", "滑点容忍（百分比），默认取配置")
	flag.Parse()

	// .env 不存在不算错误
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	if *tokenID == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "用法: tradecard -token <tokenID> -amount <金额> [-side BUY|SELL] [-mode usd|contracts]")
		os.Exit(2)
	}

	intent, err := buildIntent(cfg, *tokenID, *conditionID, *side, *amount, *mode, *slippage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, intent); err != nil {
		logger.Errorf("执行失败: %v", err)
		os.Exit(1)
	}
}

func buildIntent(cfg *config.Config, tokenID, conditionID, side, amount, mode, slippage string) (*domain.OrderIntent, error) {
	raw, err := decimal.NewFromString(amount)
	if err != nil || raw.Sign() <= 0 {
		return nil, fmt.Errorf("金额非法: %s", amount)
	}

	slip := decimal.NewFromFloat(cfg.Engine.DefaultSlippage)
	if slippage != "" {
		if slip, err = decimal.NewFromString(slippage); err != nil || slip.Sign() < 0 {
			return nil, fmt.Errorf("滑点非法: %s", slippage)
		}
	}

	orderSide := types.Side(side)
	if orderSide != types.SideBuy && orderSide != types.SideSell {
		return nil, fmt.Errorf("方向必须是 BUY 或 SELL: %s", side)
	}

	inputMode := domain.InputMode(mode)
	if inputMode != domain.InputModeUSD && inputMode != domain.InputModeContracts {
		return nil, fmt.Errorf("输入口径必须是 usd 或 contracts: %s", mode)
	}

	return &domain.OrderIntent{
		IntentID:        uuid.NewString(),
		TokenID:         tokenID,
		ConditionID:     conditionID,
		Side:            orderSide,
		InputMode:       inputMode,
		RawAmount:       raw,
		SlippagePercent: slip,
		Behavior:        types.OrderType(cfg.Engine.OrderBehavior),
		CreatedAt:       time.Now(),
	}, nil
}

func run(ctx context.Context, cfg *config.Config, intent *domain.OrderIntent) error {
	clobClient := client.NewClient(client.Config{
		Host:    cfg.Clob.Host,
		Timeout: cfg.ClobTimeout(),
	})

	tickSize := quote.ResolveTickSize(ctx, clobClient, intent.ConditionID)
	src := quote.NewSource(clobClient, intent.TokenID, tickSize, cfg.QuotePollInterval(),
		logger.WithField("component", "quote_source"))
	src.Start(ctx)
	defer src.Stop()

	engine := execution.NewEngine(clobClient, src, cloberr.New(), execution.Config{
		PollInterval:    cfg.StatusPollInterval(),
		GracePeriod:     cfg.GracePeriod(),
		WatchdogTimeout: cfg.WatchdogTimeout(),
		MinOrderUSD:     decimal.NewFromFloat(cfg.Engine.MinOrderUSDC),
		DryRun:          cfg.Engine.DryRun,
	})
	go engine.Run(ctx)

	// 等第一个盘口快照到位
	if err := waitForQuote(ctx, src); err != nil {
		return err
	}

	printFillEstimate(ctx, clobClient, intent)

	reply := make(chan *execution.ExecuteResult, 1)
	engine.Submit(&execution.ExecuteCommand{Intent: intent, Reply: reply})

	var result *execution.ExecuteResult
	select {
	case result = <-reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	if result.Err != nil {
		if result.Classified != nil {
			return fmt.Errorf("%s", result.Classified.UserMessage)
		}
		return result.Err
	}

	logger.Infof("订单已提交 id=%s 限价=%s 数量=%s 预估成本=%s",
		result.OrderID, result.Order.LimitPrice, result.Order.Contracts, result.Order.EstimatedMaxCost)

	// 跟踪到终态或被信号打断
	for {
		select {
		case snap := <-engine.Updates():
			if snap.Record == nil {
				continue
			}
			logger.Infof("阶段=%s 成交=%s/%s",
				snap.Record.Phase, snap.Record.FilledContracts, snap.Record.TotalContracts)
			if snap.Record.Phase.IsTerminal() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// printFillEstimate 下单前按订单簿深度打一行成本预估。
// 纯展示，拉不到订单簿或深度为零就不打，绝不因此中断下单。
func printFillEstimate(ctx context.Context, clobClient *client.Client, intent *domain.OrderIntent) {
	if intent.InputMode != domain.InputModeUSD {
		return
	}
	book, err := clobClient.GetOrderBook(ctx, intent.TokenID)
	if err != nil {
		return
	}
	p := pricing.EstimateFill(book, intent.Side, intent.RawAmount)
	if p.Contracts.Sign() <= 0 {
		return
	}
	logger.Infof("盘口预估：约 %s 份合约，均价 $%s，预计使用 $%s",
		p.Contracts.Round(2), p.AvgPrice.Round(4), p.UsedUSD.Round(2))
}

func waitForQuote(ctx context.Context, src *quote.Source) error {
	deadline := time.After(5 * time.Second)
	for {
		if src.Latest() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("等待盘口超时")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
