package store

import (
	"context"

	"github.com/Luigik28/rizzo-trading-agent/internal/store/model"
)

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Operations() OperationRepository
	Accounts() AccountRepository
	Errors() ErrorRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

type OperationRepository interface {
	Insert(ctx context.Context, op *model.BotOperationModel) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]model.BotOperationModel, error)
	Last(ctx context.Context) (*model.BotOperationModel, error)
}

type AccountRepository interface {
	Insert(ctx context.Context, snap *model.AccountSnapshotModel) error
	Last(ctx context.Context) (*model.AccountSnapshotModel, error)
}

type ErrorRepository interface {
	Insert(ctx context.Context, e *model.ErrorLogModel) error
	ListRecent(ctx context.Context, limit int) ([]model.ErrorLogModel, error)
}
