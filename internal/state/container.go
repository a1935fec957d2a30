package state

import (
	"sync"

	"go.uber.org/zap"

	"mindwell/internal/domain"
)

// Snapshot es la vista inmutable del estado de identidad que reciben los
// consumidores.
type Snapshot struct {
	User            *domain.Profile `json:"user"`
	IsAuthenticated bool            `json:"is_authenticated"`
	IsLoading       bool            `json:"is_loading"`
	Error           string          `json:"error,omitempty"`
	IsInitialized   bool            `json:"is_initialized"`
}

// Container es el estado de identidad compartido del proceso. Solo el
// Session Manager y la suscripción a cambios escriben user/isAuthenticated.
// El snapshot persistido cubre únicamente {user, isAuthenticated}; los flags
// de carga y error arrancan siempre en sus valores por defecto.
type Container struct {
	logger *zap.Logger
	store  SnapshotStore

	mu              sync.Mutex
	user            *domain.Profile
	isAuthenticated bool
	isLoading       bool
	err             string
	isInitialized   bool
	seq             int
	subs            map[int]func(Snapshot)
}

// NewContainer construye el contenedor leyendo el snapshot persistido una
// sola vez al inicio del proceso.
func NewContainer(logger *zap.Logger, store SnapshotStore) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemorySnapshotStore()
	}
	c := &Container{
		logger: logger,
		store:  store,
		subs:   make(map[int]func(Snapshot)),
	}
	snap, err := store.Load()
	if err != nil {
		logger.Warn("load auth snapshot failed", zap.Error(err))
	} else if snap != nil {
		c.user = snap.User
		c.isAuthenticated = snap.IsAuthenticated
	}
	return c
}

// Snapshot devuelve una copia del estado actual.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registra un observador y devuelve su handle de baja. El callback
// recibe cada transición posterior.
func (c *Container) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.subs[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// BeginOperation marca el inicio de una operación con red: loading en true y
// error limpio.
func (c *Container) BeginOperation() {
	c.mu.Lock()
	c.isLoading = true
	c.err = ""
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	notify(fns, snap)
}

// FailOperation termina una operación con error sin tocar la identidad.
func (c *Container) FailOperation(msg string) {
	c.mu.Lock()
	c.isLoading = false
	c.err = msg
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	notify(fns, snap)
}

// SetAuthenticated fija la identidad vigente y persiste el snapshot.
func (c *Container) SetAuthenticated(user *domain.Profile) {
	c.mu.Lock()
	c.user = user
	c.isAuthenticated = user != nil
	c.isLoading = false
	c.err = ""
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	if err := c.store.Save(domain.AuthSnapshot{User: snap.User, IsAuthenticated: snap.IsAuthenticated}); err != nil {
		c.logger.Warn("save auth snapshot failed", zap.Error(err))
	}
	notify(fns, snap)
}

// SetUnauthenticated deja el estado sin identidad y persiste el snapshot
// vacío.
func (c *Container) SetUnauthenticated() {
	c.mu.Lock()
	c.user = nil
	c.isAuthenticated = false
	c.isLoading = false
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	if err := c.store.Save(domain.AuthSnapshot{}); err != nil {
		c.logger.Warn("save auth snapshot failed", zap.Error(err))
	}
	notify(fns, snap)
}

// Clear limpia identidad, flags y el snapshot persistido. Es el camino de
// sign-out: incondicional aunque la llamada remota haya fallado.
func (c *Container) Clear() {
	c.mu.Lock()
	c.user = nil
	c.isAuthenticated = false
	c.isLoading = false
	c.err = ""
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Warn("clear auth snapshot failed", zap.Error(err))
	}
	notify(fns, snap)
}

// SetInitialized marca el contenedor como inicializado tras la restauración.
func (c *Container) SetInitialized() {
	c.mu.Lock()
	c.isInitialized = true
	snap, fns := c.snapshotLocked(), c.subscribersLocked()
	c.mu.Unlock()
	notify(fns, snap)
}

func (c *Container) snapshotLocked() Snapshot {
	return Snapshot{
		User:            c.user,
		IsAuthenticated: c.isAuthenticated,
		IsLoading:       c.isLoading,
		Error:           c.err,
		IsInitialized:   c.isInitialized,
	}
}

func (c *Container) subscribersLocked() []func(Snapshot) {
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(Snapshot), snap Snapshot) {
	for _, fn := range fns {
		fn(snap)
	}
}
