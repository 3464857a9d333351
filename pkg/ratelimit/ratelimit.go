// Package ratelimit 提供按端点分组的客户端限速。
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
}

// TokenBucket 令牌桶（写类端点：下单、撤单）
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+add)
		tb.lastRefill = now
	}
}

// Allow 检查是否允许请求
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 等待直到允许请求或 ctx 取消
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := time.Second
		if tb.refillRate > 0 {
			wait = time.Second / time.Duration(tb.refillRate)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// SlidingWindow 滑动窗口（读类端点：盘口、状态查询）
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	mu         sync.Mutex
}

func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, windowSize: windowSize}
}

// Allow 检查是否允许请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := time.Now().Add(-sw.windowSize)
	kept := sw.requests[:0]
	for _, ts := range sw.requests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	sw.requests = kept

	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, time.Now())
	return true
}

// Wait 等待直到允许请求或 ctx 取消
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		sw.mu.Lock()
		wait := 100 * time.Millisecond
		if len(sw.requests) > 0 {
			if d := sw.windowSize - time.Since(sw.requests[0]); d > wait {
				wait = d
			}
		}
		sw.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Manager 按端点分组的限速管理器
type Manager struct {
	limiters map[string]RateLimiter
	fallback RateLimiter
	mu       sync.RWMutex
}

// NewManager 创建管理器并装配 CLOB 各端点的默认限额
func NewManager() *Manager {
	m := &Manager{
		limiters: make(map[string]RateLimiter),
		fallback: NewSlidingWindow(500, 10*time.Second),
	}
	// CLOB API 限额
	m.limiters["order:post"] = NewTokenBucket(2400, 240)
	m.limiters["order:delete"] = NewTokenBucket(2400, 240)
	m.limiters["order:get"] = NewSlidingWindow(150, 10*time.Second)
	m.limiters["book:get"] = NewSlidingWindow(200, 10*time.Second)
	m.limiters["price:get"] = NewSlidingWindow(200, 10*time.Second)
	m.limiters["market:get"] = NewSlidingWindow(125, 10*time.Second)
	return m
}

// Wait 等待指定端点的配额
func (m *Manager) Wait(ctx context.Context, endpoint string) error {
	return m.get(endpoint).Wait(ctx)
}

func (m *Manager) get(endpoint string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.limiters[endpoint]; ok {
		return l
	}
	return m.fallback
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
