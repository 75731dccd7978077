package tokenstore

import (
	"context"
	"sync"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
)

// broadcaster fans token changes out to subscribers. Each subscriber only
// ever holds the latest value; a slow reader skips intermediate states.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan *deviceflow.DeviceTokenSuccess]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan *deviceflow.DeviceTokenSuccess]struct{})}
}

// subscribe registers a subscriber primed with initial. The channel is
// closed once ctx is done.
func (b *broadcaster) subscribe(ctx context.Context, initial *deviceflow.DeviceTokenSuccess) <-chan *deviceflow.DeviceTokenSuccess {
	ch := make(chan *deviceflow.DeviceTokenSuccess, 1)
	ch <- copyToken(initial)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *broadcaster) publish(token *deviceflow.DeviceTokenSuccess) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		offerLatest(ch, copyToken(token))
	}
}

// offerLatest replaces any undelivered value in ch with token
func offerLatest(ch chan *deviceflow.DeviceTokenSuccess, token *deviceflow.DeviceTokenSuccess) {
	for {
		select {
		case ch <- token:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func copyToken(token *deviceflow.DeviceTokenSuccess) *deviceflow.DeviceTokenSuccess {
	if token == nil {
		return nil
	}
	c := *token
	return &c
}
