package adapter

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestEmitterDeliversInSubscriptionOrder(t *testing.T) {
	var e emitter
	var got []string
	e.subscribe(subscription{onConnect: func(solana.PublicKey) { got = append(got, "a:connect") }})
	e.subscribe(subscription{onDisc: func() { got = append(got, "b:disconnect") }})
	e.subscribe(subscription{onConnect: func(solana.PublicKey) { got = append(got, "c:connect") }})

	e.enqueue(event{kind: eventDisconnect})
	e.enqueue(event{kind: eventConnect})
	e.flush()
	require.Equal(t, []string{"b:disconnect", "a:connect", "c:connect"}, got)
}

func TestEmitterNestedEventsQueueBehindCurrent(t *testing.T) {
	var e emitter
	var got []string
	e.subscribe(subscription{onConnect: func(solana.PublicKey) {
		got = append(got, "first")
		e.enqueue(event{kind: eventDisconnect})
		e.flush()
		got = append(got, "first-done")
	}})
	e.subscribe(subscription{
		onConnect: func(solana.PublicKey) { got = append(got, "second") },
		onDisc:    func() { got = append(got, "disconnect") },
	})

	e.enqueue(event{kind: eventConnect})
	e.flush()
	require.Equal(t, []string{"first", "first-done", "second", "disconnect"}, got)
}

func TestEmitterUnsubscribeDuringDelivery(t *testing.T) {
	var e emitter
	var got []string
	var removeB func()
	e.subscribe(subscription{onDisc: func() {
		got = append(got, "a")
		removeB()
	}})
	removeB = e.subscribe(subscription{onDisc: func() { got = append(got, "b") }})

	e.enqueue(event{kind: eventDisconnect})
	e.enqueue(event{kind: eventDisconnect})
	e.flush()
	// 当前事件使用投递开始时的快照。
	require.Equal(t, []string{"a", "b", "a"}, got)
}
