package challenge

import (
	"errors"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/authgate/internal"
)

// Kind distinguishes registration from authentication ceremonies. A ceremony
// started for one purpose can never finish the other.
type Kind uint8

const (
	KindRegistration Kind = iota + 1
	KindAuthentication
)

// Ceremony is one pending WebAuthn exchange. UserID is empty for decoy
// ceremonies minted to conceal unknown usernames.
type Ceremony struct {
	Kind      Kind
	UserID    string
	Username  string
	Session   webauthn.SessionData
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Config holds registry tuning parameters.
type Config struct {
	// TTL bounds how long a ceremony stays claimable.
	TTL time.Duration
	// MaxPending is a soft cap; inserting above it evicts the entry
	// closest to expiry. Zero means unbounded.
	MaxPending int
	// SweepInterval is how often the background sweeper reaps expired
	// entries. Zero disables the sweeper; expired entries are still
	// rejected on take.
	SweepInterval time.Duration
}

// Registry holds pending ceremonies in memory keyed by 128-bit random IDs.
// Ceremonies are single-use: TakeAndRemove claims and deletes atomically, so
// exactly one of any number of concurrent finishes can win.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Ceremony

	cfg Config
	now func() time.Time

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its sweeper when
// Config.SweepInterval is positive. Callers own the returned registry and
// must Close it to stop the sweeper.
func NewRegistry(cfg Config) *Registry {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}

	r := &Registry{
		entries: make(map[string]Ceremony),
		cfg:     cfg,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	if cfg.SweepInterval > 0 {
		r.wg.Add(1)
		go r.sweepLoop(cfg.SweepInterval)
	}

	return r
}

// Put stores a ceremony under a fresh random ID and returns the ID.
// CreatedAt and ExpiresAt are stamped here; values supplied by the caller
// are ignored.
func (r *Registry) Put(c Ceremony) (string, error) {
	if c.Kind != KindRegistration && c.Kind != KindAuthentication {
		return "", errors.New("invalid ceremony kind")
	}

	cid, err := internal.NewCeremonyID()
	if err != nil {
		return "", err
	}
	id := cid.String()

	now := r.now()
	c.CreatedAt = now
	c.ExpiresAt = now.Add(r.cfg.TTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxPending > 0 && len(r.entries) >= r.cfg.MaxPending {
		r.evictOldestLocked()
	}
	r.entries[id] = c

	return id, nil
}

// TakeAndRemove claims the ceremony for id. The entry is deleted before the
// method returns, so concurrent callers observe exactly one success. Expired
// entries are deleted and reported as absent, indistinguishable from unknown
// IDs.
func (r *Registry) TakeAndRemove(id string) (Ceremony, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.entries[id]
	if !ok {
		return Ceremony{}, false
	}
	delete(r.entries, id)

	if r.now().After(c.ExpiresAt) {
		return Ceremony{}, false
	}

	return c, true
}

// Len reports the number of pending ceremonies, expired included until the
// next sweep.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close stops the sweeper. The registry remains usable for takes afterward;
// expired entries are then only reaped lazily.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.entries {
		if now.After(c.ExpiresAt) {
			delete(r.entries, id)
		}
	}
}

// evictOldestLocked drops the entry closest to expiry. Callers hold r.mu.
func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time

	for id, c := range r.entries {
		if oldestID == "" || c.ExpiresAt.Before(oldestAt) {
			oldestID = id
			oldestAt = c.ExpiresAt
		}
	}

	if oldestID != "" {
		delete(r.entries, oldestID)
	}
}
