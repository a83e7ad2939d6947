package repository

import (
	"context"

	"github.com/indieauthify/indieauthify/model"
	"gorm.io/gorm"
)

type IssuedTokenRepository interface {
	WithTx(tx *gorm.DB) IssuedTokenRepository
	First(ctx context.Context, token string) (*model.IssuedToken, error)
	FindByClientID(ctx context.Context, clientID string) (*model.IssuedToken, error)
	List(ctx context.Context) ([]*model.IssuedToken, error)
	Create(ctx context.Context, token *model.IssuedToken) error
	DeleteByClientID(ctx context.Context, clientID string) (int64, error)
	Delete(ctx context.Context, token string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type issuedTokenRepository struct {
	db *gorm.DB
}

func (r *issuedTokenRepository) WithTx(tx *gorm.DB) IssuedTokenRepository {
	return NewIssuedTokenRepository(tx)
}

func (r *issuedTokenRepository) First(ctx context.Context, token string) (*model.IssuedToken, error) {
	var issued model.IssuedToken
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&issued).Error; err != nil {
		return nil, err
	}
	return &issued, nil
}

func (r *issuedTokenRepository) FindByClientID(ctx context.Context, clientID string) (*model.IssuedToken, error) {
	var issued model.IssuedToken
	if err := r.db.WithContext(ctx).Where("client_id = ?", clientID).First(&issued).Error; err != nil {
		return nil, err
	}
	return &issued, nil
}

func (r *issuedTokenRepository) List(ctx context.Context) ([]*model.IssuedToken, error) {
	var issued []*model.IssuedToken
	err := r.db.WithContext(ctx).Order("issued_at DESC").Find(&issued).Error
	return issued, err
}

func (r *issuedTokenRepository) Create(ctx context.Context, token *model.IssuedToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *issuedTokenRepository) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&model.IssuedToken{})
	return result.RowsAffected, result.Error
}

func (r *issuedTokenRepository) Delete(ctx context.Context, token string) (int64, error) {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.IssuedToken{})
	return result.RowsAffected, result.Error
}

func (r *issuedTokenRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.IssuedToken{})
	return result.RowsAffected, result.Error
}

func NewIssuedTokenRepository(db *gorm.DB) IssuedTokenRepository {
	return &issuedTokenRepository{db}
}
