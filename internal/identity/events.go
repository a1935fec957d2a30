package identity

import "sync"

// broadcaster reparte eventos de cambio de autenticación a los suscriptores
// registrados. Cada suscripción devuelve su propio handle de baja.
type broadcaster struct {
	mu   sync.Mutex
	seq  int
	subs map[int]ChangeFunc
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]ChangeFunc)}
}

func (b *broadcaster) subscribe(fn ChangeFunc) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *broadcaster) emit(event, identityID string) {
	b.mu.Lock()
	fns := make([]ChangeFunc, 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	// Callbacks fuera del lock para permitir re-suscripción dentro de uno.
	for _, fn := range fns {
		fn(event, identityID)
	}
}
