/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/quotebattle/games/trivia"
)

const answer = "Walter White"

// stubProvider hands out numbered questions whose answer is always
// Walter White. It fails the next `fail` calls when set.
type stubProvider struct {
	mu    sync.Mutex
	calls int
	fail  int
}

func (p *stubProvider) FetchQuestion(_ context.Context) (trivia.Question, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.fail > 0 {
		p.fail--
		return trivia.Question{}, errors.New("quote service down")
	}

	return trivia.Question{
		Prompt:        fmt.Sprintf("quote %d", p.calls),
		CorrectAnswer: answer,
		Options:       []string{"Saul Goodman", answer, "Jesse Pinkman", "Badger"},
	}, nil
}

func (p *stubProvider) failNext(n int) {
	p.mu.Lock()
	p.fail = n
	p.mu.Unlock()
}

// heldProvider parks every fetch until release is closed or the fetch
// times out. entered receives once per fetch.
type heldProvider struct {
	entered chan struct{}
	release chan struct{}
}

func newHeldProvider() *heldProvider {
	return &heldProvider{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (p *heldProvider) FetchQuestion(ctx context.Context) (trivia.Question, error) {
	p.entered <- struct{}{}

	select {
	case <-p.release:
	case <-ctx.Done():
		return trivia.Question{}, ctx.Err()
	}

	return trivia.Question{
		Prompt:        "Tread lightly.",
		CorrectAnswer: answer,
		Options:       []string{"Saul Goodman", answer, "Jesse Pinkman", "Badger"},
	}, nil
}

type harness struct {
	engine   *trivia.Engine
	store    *trivia.Store
	provider *stubProvider
	metrics  *trivia.Metrics
}

type harnessOption func(c *trivia.Config)

func withQuota(n int) harnessOption {
	return func(c *trivia.Config) {
		c.RoundQuota = n
	}
}

func withProvider(p trivia.Provider) harnessOption {
	return func(c *trivia.Config) {
		c.Provider = p
	}
}

func withFetchTimeout(d time.Duration) harnessOption {
	return func(c *trivia.Config) {
		c.FetchTimeout = d
	}
}

func makeHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	h := &harness{
		store:    trivia.NewStore(),
		provider: &stubProvider{},
		metrics:  trivia.NewMetrics(prometheus.NewRegistry()),
	}

	c := trivia.Config{
		Registry:     trivia.NewRegistry(),
		Store:        h.store,
		Provider:     h.provider,
		RoundQuota:   trivia.DefaultRoundQuota,
		FetchTimeout: time.Second,
		Metrics:      h.metrics,
		Logf:         t.Logf,
	}
	for _, opt := range opts {
		opt(&c)
	}

	h.engine = trivia.NewEngine(c)

	return h
}

type client struct {
	id string
	ch chan any
}

// connect registers a client and consumes its greeting.
func (h *harness) connect(t *testing.T) *client {
	t.Helper()

	c := &client{ch: make(chan any, 64)}

	id, err := h.engine.Connect(c.ch)
	require.NoError(t, err)
	c.id = id

	hello := expect[trivia.ConnectMessage](t, c)
	require.Equal(t, id, hello.ClientID)

	return c
}

// game creates a session, seats a and b, and drains the join broadcasts.
func (h *harness) game(t *testing.T, a, b *client) string {
	t.Helper()

	snap, err := h.engine.Create(a.id)
	require.NoError(t, err)
	expect[trivia.GameMessage](t, a)

	require.NoError(t, h.engine.Join(a.id, snap.ID))
	expect[trivia.GameMessage](t, a)

	require.NoError(t, h.engine.Join(b.id, snap.ID))
	expect[trivia.GameMessage](t, a)
	expect[trivia.GameMessage](t, b)

	return snap.ID
}

// started is game plus a successful start.
func (h *harness) started(t *testing.T, a, b *client) string {
	t.Helper()

	id := h.game(t, a, b)
	require.NoError(t, h.engine.Start(context.Background(), a.id, id))
	expect[trivia.GameMessage](t, a)
	expect[trivia.GameMessage](t, b)

	return id
}

func receive(t *testing.T, c *client) any {
	t.Helper()

	select {
	case msg, ok := <-c.ch:
		require.True(t, ok, "channel of %s closed", c.id)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no message for %s", c.id)
		return nil
	}
}

func expect[T any](t *testing.T, c *client) T {
	t.Helper()

	msg := receive(t, c)
	out, ok := msg.(T)
	require.Truef(t, ok, "got %T (%+v), want %T", msg, msg, out)

	return out
}

func requireSilent(t *testing.T, c *client) {
	t.Helper()

	select {
	case msg := <-c.ch:
		t.Fatalf("unexpected message for %s: %+v", c.id, msg)
	default:
	}
}

func turnHolders(s trivia.Session) int {
	n := 0
	for _, p := range s.Participants {
		if p.HasTurn {
			n++
		}
	}
	return n
}
