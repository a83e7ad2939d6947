package repository

import (
	"context"

	"github.com/indieauthify/indieauthify/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevokedTokenRepository interface {
	WithTx(tx *gorm.DB) RevokedTokenRepository
	Exists(ctx context.Context, token string) (bool, error)
	Insert(ctx context.Context, token string) error
	Count(ctx context.Context) (int64, error)
}

type revokedTokenRepository struct {
	db *gorm.DB
}

func (r *revokedTokenRepository) WithTx(tx *gorm.DB) RevokedTokenRepository {
	return NewRevokedTokenRepository(tx)
}

func (r *revokedTokenRepository) Exists(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RevokedToken{}).Where("token = ?", token).Count(&count).Error
	return count > 0, err
}

// Insert records token as revoked. Inserting an already revoked token is a
// no-op.
func (r *revokedTokenRepository) Insert(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RevokedToken{Token: token}).Error
}

func (r *revokedTokenRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.RevokedToken{}).Count(&count).Error
	return count, err
}

func NewRevokedTokenRepository(db *gorm.DB) RevokedTokenRepository {
	return &revokedTokenRepository{db}
}
