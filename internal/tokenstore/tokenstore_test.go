package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/indieauthify/indieauthify/internal/config"
	"github.com/indieauthify/indieauthify/internal/database"
	"github.com/indieauthify/indieauthify/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tokens.db"),
	}, false)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return NewStore(db), db
}

func issuedToken(token, clientID string) *model.IssuedToken {
	return &model.IssuedToken{
		Token:           token,
		Me:              "https://example.com/",
		ClientID:        clientID,
		Scope:           "create",
		IssuedAt:        time.Now(),
		ExpiresAt:       time.Now().Add(time.Hour).Unix(),
		AppMetadataJSON: "{}",
	}
}

func countIssued(t *testing.T, db *gorm.DB, clientID string) int64 {
	var count int64
	require.NoError(t, db.Model(&model.IssuedToken{}).Where("client_id = ?", clientID).Count(&count).Error)
	return count
}

func TestRecordIssuedKeepsOneTokenPerClient(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordIssued(ctx, issuedToken("t1", "https://app.example/")))
	require.NoError(t, store.RecordIssued(ctx, issuedToken("t2", "https://app.example/")))
	require.NoError(t, store.RecordIssued(ctx, issuedToken("t3", "https://other.example/")))

	assert.Equal(t, int64(1), countIssued(t, db, "https://app.example/"))

	active, err := store.IsActive(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, active)

	active, err = store.IsActive(ctx, "t2")
	require.NoError(t, err)
	assert.True(t, active)

	issued, err := store.ListIssued(ctx)
	require.NoError(t, err)
	assert.Len(t, issued, 2)
}

func TestRecordIssuedConcurrent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.RecordIssued(ctx, issuedToken(fmt.Sprintf("t%d", i), "https://app.example/"))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), countIssued(t, db, "https://app.example/"))
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordIssued(ctx, issuedToken("t1", "https://app.example/")))
	require.NoError(t, store.Revoke(ctx, "t1"))
	require.NoError(t, store.Revoke(ctx, "t1"))

	var count int64
	require.NoError(t, db.Model(&model.RevokedToken{}).Where("token = ?", "t1").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	revoked, err := store.IsRevoked(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, revoked)

	active, err := store.IsActive(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, active)

	revoked, err = store.IsRevoked(ctx, "never-issued")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeAll(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordIssued(ctx, issuedToken("t1", "https://a.example/")))
	require.NoError(t, store.RecordIssued(ctx, issuedToken("t2", "https://b.example/")))

	count, err := store.RevokeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	issued, err := store.ListIssued(ctx)
	require.NoError(t, err)
	assert.Empty(t, issued)

	for _, token := range []string{"t1", "t2"} {
		revoked, err := store.IsRevoked(ctx, token)
		require.NoError(t, err)
		assert.True(t, revoked, token)
	}
}

func TestRedeemTicket(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ticket, err := store.AddTicket(ctx, "/feeds /private")
	require.NoError(t, err)
	assert.Equal(t, []string{"/feeds", "/private"}, ticket.Resources())

	issued, err := store.RedeemTicket(ctx, ticket.Token, func(t *model.Ticket) (*model.IssuedToken, error) {
		return issuedToken("access-"+t.Token, "https://reader.example/"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "access-"+ticket.Token, issued.Token)

	_, err = store.RedeemTicket(ctx, ticket.Token, func(t *model.Ticket) (*model.IssuedToken, error) {
		return issuedToken("again", "https://reader.example/"), nil
	})
	assert.ErrorIs(t, err, ErrTicketNotFound)

	tickets, err := store.ListTickets(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestRedeemTicketRollsBackOnIssueFailure(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ticket, err := store.AddTicket(ctx, "/feeds")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = store.RedeemTicket(ctx, ticket.Token, func(t *model.Ticket) (*model.IssuedToken, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrStorage)

	tickets, err := store.ListTickets(ctx)
	require.NoError(t, err)
	assert.Len(t, tickets, 1)
}

func TestGetIssuedNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.GetIssued(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
