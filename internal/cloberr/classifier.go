// Package cloberr 把 CLOB 上游错误载荷映射为用户可读的结构化错误。
//
// 上游错误形态不统一：有时是稳定的错误码，有时只有自由文本。分类顺序：
// 错误码精确匹配 → 规范文案子串匹配 → 流动性短语启发式 → 价格上下限
// 正则改写 → 原文兜底。找得到具体信息时绝不用笼统文案覆盖。
package cloberr

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/betbot/tradecard/clob/types"
)

// Classified 分类后的错误
type Classified struct {
	Code        string // 识别出的错误码，未识别为空
	UserMessage string // 给用户看的一句话
	Description string // 更长的解释，可为空
	Retryable   bool   // 原样重试是否可能成功
}

// entry 错误码表条目
type entry struct {
	canonical   string // 上游规范文案（用于子串匹配）
	userMessage string
	description string
	retryable   bool
}

// codeTable CLOB 错误码封闭表。
// 新错误码先进表再上线，不允许散落在调用方的字符串判断里。
var codeTable = map[string]entry{
	"INVALID_ORDER_MIN_SIZE": {
		canonical:   "order size lower than the minimum",
		userMessage: "订单金额低于交易所最小限制，请增加金额",
		description: "order size lower than the minimum allowed for this market",
	},
	"INVALID_ORDER_MIN_TICK_SIZE": {
		canonical:   "breaks minimum tick size rules",
		userMessage: "订单价格精度不符合该市场的最小变动价位",
		description: "price breaks minimum tick size rules",
	},
	"INVALID_ORDER_NOT_ENOUGH_BALANCE": {
		canonical:   "not enough balance / allowance",
		userMessage: "余额或授权额度不足",
		description: "not enough balance or allowance to place this order",
	},
	"INVALID_ORDER_DUPLICATED": {
		canonical:   "order is duplicated",
		userMessage: "重复订单：相同的订单已经提交过",
	},
	"INVALID_ORDER_EXPIRATION": {
		canonical:   "invalid expiration",
		userMessage: "订单过期时间非法",
	},
	"FOK_ORDER_NOT_FILLED_ERROR": {
		canonical:   "order couldn't be fully filled",
		userMessage: "订单无法全部成交，已整单取消。可提高滑点容忍或减小数量后重试",
		description: "FOK order couldn't be fully filled at the requested price",
		retryable:   true,
	},
	"ORDER_DELAYED": {
		canonical:   "order match delayed due to market conditions",
		userMessage: "市场繁忙，订单撮合延迟，系统会继续跟踪状态",
		retryable:   true,
	},
	"DELAYING_ORDER_ERROR": {
		canonical:   "error delaying the order",
		userMessage: "交易所延迟处理订单时出错，请重试",
		retryable:   true,
	},
	"MARKET_NOT_READY": {
		canonical:   "market is not yet ready to process new orders",
		userMessage: "市场暂未开放下单，请稍后重试",
		retryable:   true,
	},
	"EXECUTION_ERROR": {
		canonical:   "error performing the execution",
		userMessage: "交易所执行失败，请稍后重试",
		retryable:   true,
	},
}

// codeOrder 匹配顺序固定，避免一段文本里出现多个码时结果随机
var codeOrder = []string{
	"INVALID_ORDER_MIN_SIZE",
	"INVALID_ORDER_MIN_TICK_SIZE",
	"INVALID_ORDER_NOT_ENOUGH_BALANCE",
	"INVALID_ORDER_DUPLICATED",
	"INVALID_ORDER_EXPIRATION",
	"FOK_ORDER_NOT_FILLED_ERROR",
	"ORDER_DELAYED",
	"DELAYING_ORDER_ERROR",
	"MARKET_NOT_READY",
	"EXECUTION_ERROR",
}

// 流动性耗尽短语。上游在吃穿订单簿时返回这类自由文本。
var liquidityPhrases = []string{
	"no match found",
	"no orders found to match",
}

const liquidityMessage = "当前价位流动性不足，订单无法撮合。可提高滑点容忍或减小数量后重试"

// priceLimitRe 识别 "price must be at least $0.55" / "price must be at most $0.45"
var priceLimitRe = regexp.MustCompile(`price must be at (least|most) \$?([0-9]*\.?[0-9]+)`)

// Classifier 错误分类器
type Classifier struct{}

func New() *Classifier { return &Classifier{} }

// Classify 对上游错误做分类。
// message 是可读错误文本，raw 是原始响应体（可为 nil），码匹配会同时
// 在两者里找。
func (c *Classifier) Classify(message string, raw json.RawMessage) *Classified {
	haystack := message
	if len(raw) > 0 {
		haystack += " " + string(raw)
	}

	// 1. 错误码匹配：码可能嵌在任意层级的载荷里，直接找字面量
	for _, code := range codeOrder {
		e := codeTable[code]
		if strings.Contains(haystack, code) {
			return &Classified{
				Code:        code,
				UserMessage: e.userMessage,
				Description: e.description,
				Retryable:   e.retryable,
			}
		}
	}

	lower := strings.ToLower(haystack)

	// 2. 规范文案子串匹配
	for _, code := range codeOrder {
		e := codeTable[code]
		if e.canonical != "" && strings.Contains(lower, e.canonical) {
			return &Classified{
				Code:        code,
				UserMessage: e.userMessage,
				Description: e.description,
				Retryable:   e.retryable,
			}
		}
	}

	// 3. 流动性短语启发式
	for _, phrase := range liquidityPhrases {
		if strings.Contains(lower, phrase) {
			return &Classified{
				UserMessage: liquidityMessage,
				Description: strings.TrimSpace(message),
				Retryable:   true,
			}
		}
	}

	// 4. 价格上下限改写：指明需要调整滑点的方向
	if m := priceLimitRe.FindStringSubmatch(lower); m != nil {
		return &Classified{
			UserMessage: rewritePriceLimit(m[1], m[2]),
			Description: strings.TrimSpace(message),
			Retryable:   true,
		}
	}

	// 5. 原文兜底
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "未知错误"
	}
	return &Classified{UserMessage: msg}
}

// ClassifyResponse 直接从下单响应分类。
func (c *Classifier) ClassifyResponse(resp *types.OrderResponse) *Classified {
	if resp == nil {
		return &Classified{UserMessage: "未知错误"}
	}
	return c.Classify(resp.ErrorMsg, resp.Raw)
}

func rewritePriceLimit(direction, price string) string {
	if direction == "least" {
		// 买单限价低于交易所下限：需要更高的价格容忍
		return fmt.Sprintf("订单价格需不低于 $%s，请提高滑点容忍后重试", price)
	}
	return fmt.Sprintf("订单价格需不高于 $%s，请降低滑点容忍后重试", price)
}
