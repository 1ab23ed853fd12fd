package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/Luigik28/rizzo-trading-agent/internal/store/model"

	"gorm.io/gorm"
)

type operationRepo struct {
	db *gorm.DB
}

func (r *operationRepo) Insert(ctx context.Context, op *model.BotOperationModel) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *operationRepo) ListRecent(ctx context.Context, symbol string, limit int) ([]model.BotOperationModel, error) {
	var out []model.BotOperationModel
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if s := strings.ToUpper(strings.TrimSpace(symbol)); s != "" {
		q = q.Where("symbol = ?", s)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *operationRepo) Last(ctx context.Context) (*model.BotOperationModel, error) {
	var op model.BotOperationModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

type accountRepo struct {
	db *gorm.DB
}

func (r *accountRepo) Insert(ctx context.Context, snap *model.AccountSnapshotModel) error {
	return r.db.WithContext(ctx).Create(snap).Error
}

func (r *accountRepo) Last(ctx context.Context) (*model.AccountSnapshotModel, error) {
	var snap model.AccountSnapshotModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type errorRepo struct {
	db *gorm.DB
}

func (r *errorRepo) Insert(ctx context.Context, e *model.ErrorLogModel) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *errorRepo) ListRecent(ctx context.Context, limit int) ([]model.ErrorLogModel, error) {
	var out []model.ErrorLogModel
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
