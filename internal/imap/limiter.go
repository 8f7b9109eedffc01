package imap

import (
	"context"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/models"
)

// DefaultSessionsPerAccount is how many sessions one account may have open
// at once. Servers commonly refuse more parallel logins per user.
const DefaultSessionsPerAccount = 3

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "imap_sessions_active",
	Help: "Number of IMAP sessions currently open",
})

// accountLimiter bounds concurrent sessions per account. An entry only
// exists while a session for that account is open or waiting, so nothing
// outlives the requests that created it.
type accountLimiter struct {
	mu       sync.Mutex
	limit    int64
	accounts map[string]*accountSlot
}

type accountSlot struct {
	sem   *semaphore.Weighted
	users int
}

func newAccountLimiter(limit int) *accountLimiter {
	if limit <= 0 {
		limit = DefaultSessionsPerAccount
	}
	return &accountLimiter{
		limit:    int64(limit),
		accounts: make(map[string]*accountSlot),
	}
}

func accountKey(creds models.Credentials) string {
	return strings.ToLower(creds.Address) + "|" + creds.IMAPAddress()
}

// acquire blocks until the account has a free slot or ctx is done. The
// returned release must be called exactly once.
func (l *accountLimiter) acquire(ctx context.Context, creds models.Credentials) (func(), error) {
	key := accountKey(creds)

	l.mu.Lock()
	slot, ok := l.accounts[key]
	if !ok {
		slot = &accountSlot{sem: semaphore.NewWeighted(l.limit)}
		l.accounts[key] = slot
	}
	slot.users++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.leave(key, slot)
		return nil, mailerr.New(mailerr.KindLock, "wait for session slot", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.leave(key, slot)
		})
	}, nil
}

func (l *accountLimiter) leave(key string, slot *accountSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.users--
	if slot.users == 0 {
		delete(l.accounts, key)
	}
}

// tracked reports how many accounts currently hold or wait for a slot.
func (l *accountLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accounts)
}
