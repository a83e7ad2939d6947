package repository

import (
	"context"

	"github.com/indieauthify/indieauthify/model"
	"gorm.io/gorm"
)

type TicketRepository interface {
	WithTx(tx *gorm.DB) TicketRepository
	First(ctx context.Context, token string) (*model.Ticket, error)
	List(ctx context.Context) ([]*model.Ticket, error)
	Create(ctx context.Context, ticket *model.Ticket) error
	Delete(ctx context.Context, token string) (int64, error)
}

type ticketRepository struct {
	db *gorm.DB
}

func (r *ticketRepository) WithTx(tx *gorm.DB) TicketRepository {
	return NewTicketRepository(tx)
}

func (r *ticketRepository) First(ctx context.Context, token string) (*model.Ticket, error) {
	var ticket model.Ticket
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&tickets).Error
	return tickets, err
}

func (r *ticketRepository) Create(ctx context.Context, ticket *model.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *ticketRepository) Delete(ctx context.Context, token string) (int64, error) {
	result := r.db.WithContext(ctx).Where("token = ?", token).Delete(&model.Ticket{})
	return result.RowsAffected, result.Error
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db}
}
