package execution

import "time"

// DefaultWatchdogTimeout 订单在途的最长等待时间
const DefaultWatchdogTimeout = 30 * time.Second

// watchdog 在途超时看门狗。
//
// 提交成功时 Arm；订单进入任何终态时 Disarm。到期信号由引擎循环消费，
// 引擎把阶段置为 timed_out 并发出一次（且仅一次）自动撤单。
type watchdog struct {
	timeout time.Duration
	timer   *time.Timer
	armed   bool
}

func newWatchdog(timeout time.Duration) *watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	return &watchdog{timeout: timeout}
}

// Arm 启动（或重置）倒计时。
func (w *watchdog) Arm() {
	w.Disarm()
	w.timer = time.NewTimer(w.timeout)
	w.armed = true
}

// Disarm 停止倒计时并排空已触发的信号。
func (w *watchdog) Disarm() {
	if w.timer != nil {
		if !w.timer.Stop() {
			select {
			case <-w.timer.C:
			default:
			}
		}
	}
	w.armed = false
}

// C 到期通道。未 Arm 时返回 nil（select 永远不会命中）。
func (w *watchdog) C() <-chan time.Time {
	if !w.armed || w.timer == nil {
		return nil
	}
	return w.timer.C
}
