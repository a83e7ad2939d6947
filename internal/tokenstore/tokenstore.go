package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/indieauthify/indieauthify/internal/repository"
	"github.com/indieauthify/indieauthify/model"
	"gorm.io/gorm"
)

// IssueFunc builds the token to record once a ticket has been claimed.
type IssueFunc func(ticket *model.Ticket) (*model.IssuedToken, error)

// Store persists issued, revoked and ticket tokens. Every write runs in a
// single transaction.
type Store struct {
	db          *gorm.DB
	issuedRepo  repository.IssuedTokenRepository
	revokedRepo repository.RevokedTokenRepository
	ticketRepo  repository.TicketRepository
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTicketNotFound) || errors.Is(err, ErrTokenNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// withRetry runs fn in a transaction, retrying once when a concurrent
// issuance for the same client won the unique index.
func (s *Store) withRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		slog.Debug("Retrying token issuance after concurrent write", "error", err)
		err = s.db.WithContext(ctx).Transaction(fn)
	}
	return err
}

func (s *Store) replaceIssued(ctx context.Context, tx *gorm.DB, token *model.IssuedToken) error {
	issuedRepo := s.issuedRepo.WithTx(tx)
	purged, err := issuedRepo.DeleteByClientID(ctx, token.ClientID)
	if err != nil {
		return err
	}
	if purged > 0 {
		slog.Debug("Purged previous token", "clientID", token.ClientID, "count", purged)
	}
	return issuedRepo.Create(ctx, token)
}

// RecordIssued replaces any token previously issued to token.ClientID with
// token.
func (s *Store) RecordIssued(ctx context.Context, token *model.IssuedToken) error {
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		return s.replaceIssued(ctx, tx, token)
	})
	return storageError("record issued token", err)
}

// RedeemTicket claims the ticket and records the token built by issue in
// the same transaction. A ticket can be redeemed once. An error from issue
// is returned as is and leaves the ticket in place.
func (s *Store) RedeemTicket(ctx context.Context, ticket string, issue IssueFunc) (*model.IssuedToken, error) {
	var (
		issued   *model.IssuedToken
		issueErr error
	)
	err := s.withRetry(ctx, func(tx *gorm.DB) error {
		ticketRepo := s.ticketRepo.WithTx(tx)
		t, err := ticketRepo.First(ctx, ticket)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTicketNotFound
		} else if err != nil {
			return err
		}
		deleted, err := ticketRepo.Delete(ctx, ticket)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrTicketNotFound
		}

		issued, issueErr = issue(t)
		if issueErr != nil {
			return issueErr
		}
		return s.replaceIssued(ctx, tx, issued)
	})
	if issueErr != nil {
		return nil, issueErr
	}
	if err != nil {
		return nil, storageError("redeem ticket", err)
	}
	return issued, nil
}

// Revoke marks token as revoked and drops it from the issued set. Revoking
// the same token twice leaves a single revocation record.
func (s *Store) Revoke(ctx context.Context, token string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.revokedRepo.WithTx(tx).Insert(ctx, token); err != nil {
			return err
		}
		_, err := s.issuedRepo.WithTx(tx).Delete(ctx, token)
		return err
	})
	return storageError("revoke token", err)
}

// RevokeAll revokes every issued token and returns how many were revoked.
func (s *Store) RevokeAll(ctx context.Context) (int, error) {
	var count int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issuedRepo := s.issuedRepo.WithTx(tx)
		revokedRepo := s.revokedRepo.WithTx(tx)
		issued, err := issuedRepo.List(ctx)
		if err != nil {
			return err
		}
		for _, token := range issued {
			if err := revokedRepo.Insert(ctx, token.Token); err != nil {
				return err
			}
		}
		_, err = issuedRepo.DeleteAll(ctx)
		count = len(issued)
		return err
	})
	if err != nil {
		return 0, storageError("revoke all tokens", err)
	}
	return count, nil
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	revoked, err := s.revokedRepo.Exists(ctx, token)
	return revoked, storageError("check revoked token", err)
}

// IsActive reports whether token is the current token of its client.
func (s *Store) IsActive(ctx context.Context, token string) (bool, error) {
	_, err := s.GetIssued(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) GetIssued(ctx context.Context, token string) (*model.IssuedToken, error) {
	issued, err := s.issuedRepo.First(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, storageError("get issued token", err)
	}
	return issued, nil
}

func (s *Store) ListIssued(ctx context.Context) ([]*model.IssuedToken, error) {
	issued, err := s.issuedRepo.List(ctx)
	return issued, storageError("list issued tokens", err)
}

// AddTicket provisions a ticket granting access to resources.
func (s *Store) AddTicket(ctx context.Context, resource string) (*model.Ticket, error) {
	ticket := &model.Ticket{
		Token:    uuid.NewString(),
		Resource: resource,
	}
	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, storageError("add ticket", err)
	}
	return ticket, nil
}

func (s *Store) ListTickets(ctx context.Context) ([]*model.Ticket, error) {
	tickets, err := s.ticketRepo.List(ctx)
	return tickets, storageError("list tickets", err)
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		issuedRepo:  repository.NewIssuedTokenRepository(db),
		revokedRepo: repository.NewRevokedTokenRepository(db),
		ticketRepo:  repository.NewTicketRepository(db),
	}
}
