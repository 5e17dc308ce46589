package adapter

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

type eventKind int

const (
	eventConnect eventKind = iota
	eventDisconnect
)

type event struct {
	kind eventKind
	key  solana.PublicKey
}

type subscription struct {
	id        uint64
	onConnect func(solana.PublicKey)
	onDisc    func()
}

// emitter 按入队顺序、按订阅顺序串行投递 connect/disconnect。
//
// 事件在持有适配器锁时入队，释放锁后由 flush 投递，
// 因此回调中可以安全地再次调用适配器。
type emitter struct {
	mu       sync.Mutex
	nextID   uint64
	subs     []subscription
	queue    []event
	draining bool
}

func (e *emitter) subscribe(s subscription) func() {
	e.mu.Lock()
	e.nextID++
	s.id = e.nextID
	e.subs = append(e.subs, s)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, cur := range e.subs {
				if cur.id == s.id {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *emitter) enqueue(ev event) {
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
}

// flush 投递所有排队事件。已有其他调用在投递时立即返回，
// 新入队的事件由正在投递的一方继续处理。
func (e *emitter) flush() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		ev := e.queue[0]
		e.queue = e.queue[1:]
		subs := make([]subscription, len(e.subs))
		copy(subs, e.subs)
		e.mu.Unlock()
		for _, s := range subs {
			switch {
			case ev.kind == eventConnect && s.onConnect != nil:
				s.onConnect(ev.key)
			case ev.kind == eventDisconnect && s.onDisc != nil:
				s.onDisc()
			}
		}
		e.mu.Lock()
	}
	e.draining = false
	e.mu.Unlock()
}
