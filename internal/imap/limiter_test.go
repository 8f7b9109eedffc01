package imap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vdavid/vmail-lite/internal/mailerr"
	"github.com/vdavid/vmail-lite/internal/testutil"
)

func TestAccountLimiter(t *testing.T) {
	t.Run("blocks past the limit until a slot is released", func(t *testing.T) {
		l := newAccountLimiter(1)

		release, err := l.acquire(context.Background(), testCreds)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.acquire(ctx, testCreds)
		assert.Equal(t, mailerr.KindLock, mailerr.KindOf(err))

		release()
		release()

		second, err := l.acquire(context.Background(), testCreds)
		require.NoError(t, err)
		second()
	})

	t.Run("accounts are independent", func(t *testing.T) {
		l := newAccountLimiter(1)
		other := testCreds
		other.Address = "veli@example.com"

		first, err := l.acquire(context.Background(), testCreds)
		require.NoError(t, err)
		defer first()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		second, err := l.acquire(ctx, other)
		require.NoError(t, err)
		second()
	})

	t.Run("address case does not split the limit", func(t *testing.T) {
		l := newAccountLimiter(1)
		upper := testCreds
		upper.Address = "ALI@example.com"

		release, err := l.acquire(context.Background(), testCreds)
		require.NoError(t, err)
		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = l.acquire(ctx, upper)
		assert.Error(t, err)
	})

	t.Run("entries are dropped when unused", func(t *testing.T) {
		l := newAccountLimiter(2)

		release, err := l.acquire(context.Background(), testCreds)
		require.NoError(t, err)
		assert.Equal(t, 1, l.tracked())

		release()
		assert.Equal(t, 0, l.tracked())
	})

	t.Run("non-positive limit uses the default", func(t *testing.T) {
		assert.Equal(t, int64(DefaultSessionsPerAccount), newAccountLimiter(0).limit)
	})
}

func TestWithSessionHonorsAccountLimit(t *testing.T) {
	conn := testutil.NewFakeIMAPConn()
	m := NewManagerWithLimit(&fakeDialer{conn: conn}, 1)

	inside := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.WithSession(context.Background(), testCreds, func(*Session) error {
			close(inside)
			time.Sleep(100 * time.Millisecond)
			return nil
		})
	}()
	<-inside

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.WithSession(ctx, testCreds, func(*Session) error { return nil })
	assert.Equal(t, mailerr.KindLock, mailerr.KindOf(err))

	<-done
	require.NoError(t, m.WithSession(context.Background(), testCreds, func(*Session) error { return nil }))
}
