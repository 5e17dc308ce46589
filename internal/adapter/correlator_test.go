package adapter

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCorrelatorIDsStrictlyIncreasing(t *testing.T) {
	c := newCorrelator()
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := c.nextID()
		require.Greater(t, id, prev)
		prev = id
	}
	require.Equal(t, uint64(100), prev)
}

func TestCorrelatorCompletesOnlyMatchingRequest(t *testing.T) {
	c := newCorrelator()
	const n = 16
	waiters := make([]*pending, n)
	for i := range waiters {
		p, err := c.register(c.nextID(), "sign")
		require.NoError(t, err)
		waiters[i] = p
	}

	order := rand.New(rand.NewSource(1)).Perm(n)
	for _, idx := range order {
		p := waiters[idx]
		payload, _ := json.Marshal(p.id)
		_, ok := c.complete(p.id, outcome{result: payload})
		require.True(t, ok)
		_, ok = c.complete(p.id, outcome{result: payload})
		require.False(t, ok, "second completion must be a no-op")
	}

	for _, p := range waiters {
		out := <-p.done
		require.NoError(t, out.err)
		var got uint64
		require.NoError(t, json.Unmarshal(out.result, &got))
		require.Equal(t, p.id, got)
		select {
		case <-p.done:
			t.Fatalf("request %d resolved twice", p.id)
		default:
		}
	}
	require.Zero(t, c.len())
}

func TestCorrelatorUnknownIDIgnored(t *testing.T) {
	c := newCorrelator()
	p, err := c.register(c.nextID(), "sign")
	require.NoError(t, err)
	_, ok := c.complete(99, outcome{err: errors.New("late")})
	require.False(t, ok)
	require.Equal(t, 1, c.len())
	select {
	case <-p.done:
		t.Fatal("unrelated completion leaked")
	default:
	}
}

func TestCorrelatorRejectsDuplicateRegistration(t *testing.T) {
	c := newCorrelator()
	_, err := c.register(1, "sign")
	require.NoError(t, err)
	_, err = c.register(1, "sign")
	require.Error(t, err)
}

func TestCorrelatorDrainAll(t *testing.T) {
	reason := errors.New("wallet disconnected")
	for _, n := range []int{0, 1, 5} {
		c := newCorrelator()
		waiters := make([]*pending, n)
		for i := range waiters {
			p, err := c.register(c.nextID(), "sign")
			require.NoError(t, err)
			waiters[i] = p
		}
		drained := c.drainAll(reason)
		require.Len(t, drained, n)
		for _, p := range waiters {
			out := <-p.done
			require.ErrorIs(t, out.err, reason)
			require.Nil(t, out.result)
		}
		require.Zero(t, c.len())
		require.Empty(t, c.drainAll(reason))
	}
}

func TestCorrelatorConcurrentUse(t *testing.T) {
	c := newCorrelator()
	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := c.nextID()
			_, loaded := seen.LoadOrStore(id, struct{}{})
			require.False(t, loaded)
			p, err := c.register(id, "sign")
			require.NoError(t, err)
			c.complete(id, outcome{result: json.RawMessage(`"ok"`)})
			out := <-p.done
			require.Equal(t, `"ok"`, string(out.result))
		}()
	}
	wg.Wait()
	require.Zero(t, c.len())
}

func TestCorrelatorSnapshotSorted(t *testing.T) {
	c := newCorrelator()
	for _, m := range []string{"sign", "signTransaction", "signAllTransactions"} {
		_, err := c.register(c.nextID(), m)
		require.NoError(t, err)
	}
	snap := c.snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, uint64(1), snap[0].ID)
	require.Equal(t, "signAllTransactions", snap[2].Method)
}
