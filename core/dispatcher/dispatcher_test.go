package dispatcher_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrymomot/fluxcore/core/dispatcher"
	"github.com/dmitrymomot/fluxcore/core/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type DemoPayload struct {
	N int
}

func noop(context.Context, ...any) error { return nil }

func TestSubscribe(t *testing.T) {
	t.Parallel()

	t.Run("returns unique tokens across channels", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		seen := make(map[dispatcher.Token]bool)

		for i := 0; i < 50; i++ {
			channel := "message"
			if i%2 == 0 {
				channel = dispatcher.ActionChannel
			}
			token, err := d.Subscribe(channel, noop)
			require.NoError(t, err)
			assert.False(t, seen[token], "token %s issued twice", token)
			assert.True(t, strings.HasPrefix(string(token), "ID_"))
			seen[token] = true
		}
	})

	t.Run("tokens start at ID_1", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		first, err := d.Subscribe("a", noop)
		require.NoError(t, err)
		second, err := d.Subscribe("b", noop)
		require.NoError(t, err)

		assert.Equal(t, dispatcher.Token("ID_1"), first)
		assert.Equal(t, dispatcher.Token("ID_2"), second)
	})

	t.Run("rejects empty channel and nil callback", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()

		_, err := d.Subscribe("", noop)
		assert.ErrorIs(t, err, dispatcher.ErrInvalidChannel)

		_, err = d.Subscribe("message", nil)
		assert.ErrorIs(t, err, dispatcher.ErrNilCallback)
	})

	t.Run("rejects subscribe during dispatch", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var subscribeErr error
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			_, subscribeErr = d.Subscribe("late", noop)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.ErrorIs(t, subscribeErr, dispatcher.ErrDispatchInProgress)
		assert.Contains(t, subscribeErr.Error(), "Subscribe")
		assert.Empty(t, d.Tokens("late"))
	})
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	t.Run("removes only the matching subscription", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var calls []string

		first, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
			calls = append(calls, "first")
			return nil
		})
		require.NoError(t, err)
		_, err = d.Subscribe("message", func(ctx context.Context, args ...any) error {
			calls = append(calls, "second")
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Unsubscribe("message", first))
		require.NoError(t, d.Publish(context.Background(), "message", "payload"))

		assert.Equal(t, []string{"second"}, calls)
	})

	t.Run("unknown channel or token is a no-op", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		token, err := d.Subscribe("message", noop)
		require.NoError(t, err)

		assert.NoError(t, d.Unsubscribe("missing", token))
		assert.NoError(t, d.Unsubscribe("message", "ID_999"))
		assert.Equal(t, []dispatcher.Token{token}, d.Tokens("message"))
	})

	t.Run("token from another channel is not removed", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		a, err := d.Subscribe("a", noop)
		require.NoError(t, err)
		_, err = d.Subscribe("b", noop)
		require.NoError(t, err)

		require.NoError(t, d.Unsubscribe("b", a))
		assert.Equal(t, []dispatcher.Token{a}, d.Tokens("a"))
		assert.Len(t, d.Tokens("b"), 1)
	})
}

func TestPublish(t *testing.T) {
	t.Parallel()

	t.Run("calls subscribers in subscription order with args", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var order []int
		var received []any

		for i := 1; i <= 3; i++ {
			_, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
				order = append(order, i)
				received = args
				return nil
			})
			require.NoError(t, err)
		}

		require.NoError(t, d.Publish(context.Background(), "message", "payload", 42))

		assert.Equal(t, []int{1, 2, 3}, order)
		assert.Equal(t, []any{"payload", 42}, received)
	})

	t.Run("channel without subscribers is a no-op", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		assert.NoError(t, d.Publish(context.Background(), "nobody", 1))
	})

	t.Run("error aborts remaining subscribers by default", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		boom := errors.New("boom")
		var laterCalled bool

		_, err := d.Subscribe("message", func(ctx context.Context, args ...any) error { return boom })
		require.NoError(t, err)
		_, err = d.Subscribe("message", func(ctx context.Context, args ...any) error {
			laterCalled = true
			return nil
		})
		require.NoError(t, err)

		err = d.Publish(context.Background(), "message")
		assert.ErrorIs(t, err, boom)
		assert.False(t, laterCalled)
	})

	t.Run("continue on error runs every subscriber and joins errors", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New(dispatcher.WithContinueOnError())
		errA := errors.New("a failed")
		errB := errors.New("b failed")
		var calls int

		for _, e := range []error{errA, nil, errB} {
			_, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
				calls++
				return e
			})
			require.NoError(t, err)
		}

		err := d.Publish(context.Background(), "message")
		assert.Equal(t, 3, calls)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
	})

	t.Run("panic is converted to error", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		_, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
			panic("kaboom")
		})
		require.NoError(t, err)

		err = d.Publish(context.Background(), "message")
		assert.ErrorIs(t, err, dispatcher.ErrHandlerPanic)
		assert.Contains(t, err.Error(), "kaboom")
	})

	t.Run("panic is logged with the recovered value", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug))
		d := dispatcher.New(dispatcher.WithLogger(log))
		token, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
			panic("kaboom")
		})
		require.NoError(t, err)

		require.Error(t, d.Publish(context.Background(), "message"))
		assert.Contains(t, buf.String(), "handler panicked")
		assert.Contains(t, buf.String(), "panic=kaboom")
		assert.Contains(t, buf.String(), "token="+string(token))
	})

	t.Run("cancelled context delivers nothing", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var called bool
		_, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
			called = true
			return nil
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, d.Publish(ctx, "message"), context.Canceled)
		assert.False(t, called)
	})

	t.Run("token of the running subscription is on the context", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var got dispatcher.Token
		token, err := d.Subscribe("message", func(ctx context.Context, args ...any) error {
			got = dispatcher.TokenFromContext(ctx)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Publish(context.Background(), "message"))
		assert.Equal(t, token, got)
	})

	t.Run("plain publish is allowed during an action dispatch", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var changed bool
		_, err := d.Subscribe("CHANGE", func(ctx context.Context, args ...any) error {
			changed = true
			return nil
		})
		require.NoError(t, err)
		_, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.Publish(ctx, "CHANGE")
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.True(t, changed)
	})
}

func TestDispatch(t *testing.T) {
	t.Parallel()

	t.Run("delivers the action to every handler once", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var calls int
		var got dispatcher.Action

		_, err := d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(func(ctx context.Context, a dispatcher.Action) error {
			calls++
			got = a
			return nil
		}))
		require.NoError(t, err)

		action := dispatcher.Action{Type: "X", Payload: DemoPayload{N: 1}}
		require.NoError(t, d.Dispatch(context.Background(), action))

		assert.Equal(t, 1, calls)
		assert.Equal(t, "X", got.Type)
		assert.Equal(t, DemoPayload{N: 1}, got.Payload)
	})

	t.Run("action is available on the handler context", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var fromCtx dispatcher.Action
		var ok bool
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			fromCtx, ok = dispatcher.ActionFromContext(ctx)
			return nil
		})
		require.NoError(t, err)

		action := dispatcher.NewAction("X", DemoPayload{N: 7})
		require.NoError(t, d.Dispatch(context.Background(), action))

		require.True(t, ok)
		assert.Equal(t, action.ID, fromCtx.ID)
	})

	t.Run("rejects malformed actions before any handler runs", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var called bool
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			called = true
			return nil
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.Action{Payload: DemoPayload{}})
		assert.ErrorIs(t, err, dispatcher.ErrInvalidAction)

		err = d.Dispatch(context.Background(), dispatcher.Action{Type: "X"})
		assert.ErrorIs(t, err, dispatcher.ErrInvalidAction)

		assert.False(t, called)
		assert.False(t, d.IsDispatching())
	})

	t.Run("reentrant dispatch is rejected", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var innerErr error
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			innerErr = d.Dispatch(ctx, dispatcher.NewAction("inner", DemoPayload{}))
			return innerErr
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("outer", DemoPayload{}))
		assert.ErrorIs(t, err, dispatcher.ErrDispatchInProgress)
		assert.ErrorIs(t, innerErr, dispatcher.ErrDispatchInProgress)
		assert.False(t, d.IsDispatching())
	})

	t.Run("publishing on the action channel during a dispatch is rejected", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var innerErr error
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			innerErr = d.Publish(ctx, dispatcher.ActionChannel, "raw")
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Publish(context.Background(), dispatcher.ActionChannel, "outer"))
		assert.ErrorIs(t, innerErr, dispatcher.ErrDispatchInProgress)
	})

	t.Run("remains consistent after a failed dispatch", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		boom := errors.New("explode")
		var calls int

		_, err := d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(func(ctx context.Context, a dispatcher.Action) error {
			if a.Payload == "explode" {
				return boom
			}
			return nil
		}))
		require.NoError(t, err)
		_, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			calls++
			return nil
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.Action{Type: "test", Payload: "explode"})
		assert.ErrorIs(t, err, boom)
		assert.False(t, d.IsDispatching())
		assert.Equal(t, 0, calls)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.Action{Type: "test", Payload: "fine"}))
		assert.Equal(t, 1, calls)

		_, err = d.Subscribe(dispatcher.ActionChannel, noop)
		assert.NoError(t, err)
	})

	t.Run("remains consistent after a panicking handler", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			panic("handler bug")
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{}))
		assert.ErrorIs(t, err, dispatcher.ErrHandlerPanic)
		assert.False(t, d.IsDispatching())
	})

	t.Run("is dispatching only inside the cycle", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var inside bool
		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			inside = d.IsDispatching()
			return nil
		})
		require.NoError(t, err)

		assert.False(t, d.IsDispatching())
		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.True(t, inside)
		assert.False(t, d.IsDispatching())
	})

	t.Run("concurrent dispatch from another goroutine is rejected", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		entered := make(chan struct{})
		release := make(chan struct{})

		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			a, _ := dispatcher.ActionFrom(args)
			if a.Type == "slow" {
				close(entered)
				<-release
			}
			return nil
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("slow", DemoPayload{})))
		}()

		<-entered
		err = d.Dispatch(context.Background(), dispatcher.NewAction("fast", DemoPayload{}))
		assert.ErrorIs(t, err, dispatcher.ErrDispatchInProgress)

		close(release)
		wg.Wait()
		assert.False(t, d.IsDispatching())
	})
}

func TestWaitFor(t *testing.T) {
	t.Parallel()

	t.Run("must be invoked while dispatching", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		token, err := d.Subscribe(dispatcher.ActionChannel, noop)
		require.NoError(t, err)

		err = d.WaitFor(context.Background(), token)
		assert.ErrorIs(t, err, dispatcher.ErrNotDispatching)
	})

	t.Run("runs the awaited handler first", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var order []string
		var second dispatcher.Token

		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			if err := d.WaitFor(ctx, second); err != nil {
				return err
			}
			order = append(order, "first")
			return nil
		})
		require.NoError(t, err)

		second, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			order = append(order, "second")
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.Equal(t, []string{"second", "first"}, order)
	})

	t.Run("awaited handler receives the pending payload", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var got dispatcher.Action
		var target dispatcher.Token

		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, target)
		})
		require.NoError(t, err)
		target, err = d.Subscribe(dispatcher.ActionChannel, dispatcher.OnAction(func(ctx context.Context, a dispatcher.Action) error {
			got = a
			return nil
		}))
		require.NoError(t, err)

		action := dispatcher.NewAction("test", DemoPayload{N: 3})
		require.NoError(t, d.Dispatch(context.Background(), action))
		assert.Equal(t, action.ID, got.ID)
	})

	t.Run("throws on self-circular dependencies", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var self dispatcher.Token
		var err error
		self, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, self)
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("test", "test"))
		assert.ErrorIs(t, err, dispatcher.ErrCircularDependency)
		assert.Contains(t, err.Error(), string(self))
		assert.False(t, d.IsDispatching())
	})

	t.Run("throws on multi-circular dependencies", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var first, second dispatcher.Token
		var err error

		first, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, second)
		})
		require.NoError(t, err)
		second, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, first)
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("test", "test"))
		assert.ErrorIs(t, err, dispatcher.ErrCircularDependency)
		assert.False(t, d.IsDispatching())

		// The dispatcher accepts new work after the failed cycle.
		_, err = d.Subscribe("message", noop)
		assert.NoError(t, err)
	})

	t.Run("diamond dependency runs shared handler once", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var aCalls int
		var order []string

		a, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			aCalls++
			order = append(order, "A")
			return nil
		})
		require.NoError(t, err)

		for _, name := range []string{"B", "C"} {
			_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
				if err := d.WaitFor(ctx, a); err != nil {
					return err
				}
				order = append(order, name)
				return nil
			})
			require.NoError(t, err)
		}

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.Equal(t, 1, aCalls)
		assert.Equal(t, []string{"A", "B", "C"}, order)
	})

	t.Run("diamond dependency with late shared handler", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var aCalls int
		var a dispatcher.Token
		var err error

		for range 2 {
			_, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
				return d.WaitFor(ctx, a)
			})
			require.NoError(t, err)
		}
		a, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			aCalls++
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.Equal(t, 1, aCalls)
	})

	t.Run("unknown token is fatal", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		plain, err := d.Subscribe("message", noop)
		require.NoError(t, err)
		_, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, plain)
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{}))
		assert.ErrorIs(t, err, dispatcher.ErrUnknownToken)
		assert.Contains(t, err.Error(), string(plain))
		assert.False(t, d.IsDispatching())
	})

	t.Run("error from awaited handler propagates", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		boom := errors.New("store failed")
		var target dispatcher.Token

		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return d.WaitFor(ctx, target)
		})
		require.NoError(t, err)
		target, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			return boom
		})
		require.NoError(t, err)

		err = d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{}))
		assert.ErrorIs(t, err, boom)
		assert.False(t, d.IsDispatching())
	})

	t.Run("chain of waits runs in dependency order", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var order []string
		tokens := make([]dispatcher.Token, 3)
		var err error

		// 0 waits for 1, 1 waits for 2.
		for i := range 3 {
			tokens[i], err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
				if i < 2 {
					if err := d.WaitFor(ctx, tokens[i+1]); err != nil {
						return err
					}
				}
				order = append(order, string(tokens[i]))
				return nil
			})
			require.NoError(t, err)
		}

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		assert.Equal(t, []string{string(tokens[2]), string(tokens[1]), string(tokens[0])}, order)
	})

	t.Run("concurrent waits run the handler once", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var calls atomic.Int32
		var target dispatcher.Token
		errs := make(chan error, 8)

		_, err := d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			var wg sync.WaitGroup
			for range 8 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- d.WaitFor(ctx, target)
				}()
			}
			wg.Wait()
			return nil
		})
		require.NoError(t, err)
		target, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			calls.Add(1)
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))
		close(errs)

		assert.Equal(t, int32(1), calls.Load())
		for err := range errs {
			if err != nil {
				assert.ErrorIs(t, err, dispatcher.ErrCircularDependency)
			}
		}
	})

	t.Run("wait after the cycle ended is rejected", func(t *testing.T) {
		t.Parallel()

		d := dispatcher.New()
		var (
			saved context.Context
			self  dispatcher.Token
			err   error
		)
		self, err = d.Subscribe(dispatcher.ActionChannel, func(ctx context.Context, args ...any) error {
			saved = ctx
			return nil
		})
		require.NoError(t, err)

		require.NoError(t, d.Dispatch(context.Background(), dispatcher.NewAction("test", DemoPayload{})))

		done := make(chan error, 1)
		go func() { done <- d.WaitFor(saved, self) }()
		assert.ErrorIs(t, <-done, dispatcher.ErrNotDispatching)
	})
}
