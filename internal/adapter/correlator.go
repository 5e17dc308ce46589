package adapter

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// outcome 是一次请求的最终结果，二者恰有其一。
type outcome struct {
	result json.RawMessage
	err    error
}

// pending 是一个在途请求；done 只会被写入一次。
type pending struct {
	id      uint64
	method  string
	started time.Time
	done    chan outcome
}

// correlator 负责分配请求 id 并把响应路由回等待者。
type correlator struct {
	// next 在适配器生命周期内单调递增，重连不重置。
	next atomic.Uint64

	mu    sync.Mutex
	table map[uint64]*pending
}

func newCorrelator() *correlator {
	return &correlator{table: make(map[uint64]*pending)}
}

// nextID 返回从 1 开始严格递增的 id。
func (c *correlator) nextID() uint64 {
	return c.next.Add(1)
}

func (c *correlator) register(id uint64, method string) (*pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.table[id]; ok {
		return nil, fmt.Errorf("request id %d already pending", id)
	}
	p := &pending{id: id, method: method, started: time.Now(), done: make(chan outcome, 1)}
	c.table[id] = p
	return p, nil
}

// complete 结束 id 对应的请求；未知或已完成的 id 直接忽略。
func (c *correlator) complete(id uint64, out outcome) (*pending, bool) {
	c.mu.Lock()
	p, ok := c.table[id]
	if ok {
		delete(c.table, id)
	}
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	p.done <- out
	return p, true
}

// forget 移除请求但不通知等待者。
func (c *correlator) forget(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.table, id)
}

// drainAll 以 reason 拒绝全部在途请求并清空表，返回被拒绝的请求。
func (c *correlator) drainAll(reason error) []*pending {
	c.mu.Lock()
	drained := make([]*pending, 0, len(c.table))
	for id, p := range c.table {
		delete(c.table, id)
		drained = append(drained, p)
	}
	c.mu.Unlock()
	sort.Slice(drained, func(i, j int) bool { return drained[i].id < drained[j].id })
	for _, p := range drained {
		p.done <- outcome{err: reason}
	}
	return drained
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.table)
}

// PendingRequest 是在途请求的只读快照。
type PendingRequest struct {
	ID      uint64    `json:"id"`
	Method  string    `json:"method"`
	Started time.Time `json:"started"`
}

func (c *correlator) snapshot() []PendingRequest {
	c.mu.Lock()
	out := make([]PendingRequest, 0, len(c.table))
	for _, p := range c.table {
		out = append(out, PendingRequest{ID: p.id, Method: p.method, Started: p.started})
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
