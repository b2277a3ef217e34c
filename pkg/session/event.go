package session

import "sync"

// Event is a session state transition.
type Event int

const (
	// LoginUnauthorized is emitted when a login attempt is rejected with 401.
	LoginUnauthorized Event = -1
	// LoginDisconnected is emitted after a successful logout.
	LoginDisconnected Event = 0
	// LoginOK is emitted after a successful login.
	LoginOK Event = 1
)

func (e Event) String() string {
	switch e {
	case LoginUnauthorized:
		return "LOGIN_UNAUTHORIZED"
	case LoginDisconnected:
		return "LOGIN_DISCONNECTED"
	case LoginOK:
		return "LOGIN_OK"
	}
	return "UNKNOWN"
}

// eventBuffer is the per-subscriber channel capacity. Events for a full
// subscriber are dropped.
const eventBuffer = 16

type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	b.mu.Lock()
	if b.subscribers == nil {
		b.subscribers = make(map[chan Event]struct{})
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, unsubscribe
}

func (b *broadcaster) emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}
