package execution

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/betbot/tradecard/internal/domain"
)

// pollResult 一次状态查询的结果。notFound 表示上游查无此单。
type pollResult struct {
	seq      uint64
	phase    domain.StatusPhase
	filled   decimal.Decimal
	total    decimal.Decimal
	price    decimal.Decimal
	notFound bool
	err      error
}

// NormalizePhase 把上游任意的状态词汇映射进封闭的阶段集合，
// 然后用成交数量交叉校验修正标签。
func NormalizePhase(rawStatus string, filled, total decimal.Decimal) domain.StatusPhase {
	phase := phaseFromKeyword(rawStatus)

	if p, ok := fillConsistencyOverride(filled, total); ok {
		return p
	}
	if p, ok := mislabelGuard(phase, filled); ok {
		return p
	}
	return phase
}

// phaseFromKeyword 关键词匹配。上游词汇不稳定（matched/filled、
// cancelled/canceled 都出现过），按子串匹配而不是全等。
func phaseFromKeyword(raw string) domain.StatusPhase {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "matched"), strings.Contains(s, "filled"):
		return domain.PhaseFilled
	case strings.Contains(s, "cancel"): // cancelled / canceled / cancellation
		return domain.PhaseCanceled
	case strings.Contains(s, "expire"):
		return domain.PhaseExpired
	case strings.Contains(s, "reject"), strings.Contains(s, "invalid"):
		return domain.PhaseRejected
	case strings.Contains(s, "delay"), strings.Contains(s, "processing"):
		return domain.PhaseProcessing
	case strings.Contains(s, "live"), strings.Contains(s, "open"):
		return domain.PhaseOpen
	case strings.Contains(s, "pending"), strings.Contains(s, "unmatched"):
		return domain.PhasePending
	default:
		return domain.PhaseOpen
	}
}

// fillConsistencyOverride 成交数量优先于原始标签：
// 0 < filled < total 时无论标签说什么都是部分成交。
func fillConsistencyOverride(filled, total decimal.Decimal) (domain.StatusPhase, bool) {
	if filled.Sign() > 0 && total.Sign() > 0 && filled.LessThan(total) {
		return domain.PhasePartial, true
	}
	return "", false
}

// mislabelGuard 上游偶发把“已接受但未撮合”标成 filled。
// 标签为 filled 而成交数量为 0 时不信标签，按 canceled 处理。
//
// 这是针对上游不一致响应的经验性修正，不是业务规则；
// 上游修复后应删除。
func mislabelGuard(phase domain.StatusPhase, filled decimal.Decimal) (domain.StatusPhase, bool) {
	if phase == domain.PhaseFilled && filled.Sign() <= 0 {
		return domain.PhaseCanceled, true
	}
	return "", false
}
