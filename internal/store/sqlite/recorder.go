package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Luigik28/rizzo-trading-agent/internal/store"
	"github.com/Luigik28/rizzo-trading-agent/internal/store/model"

	"gorm.io/datatypes"
)

// Recorder 将周期结果写入 SqliteStore，每条记录一个事务。
type Recorder struct {
	store *SqliteStore
	nowFn func() time.Time
}

func NewRecorder(s *SqliteStore) *Recorder {
	return &Recorder{store: s, nowFn: time.Now}
}

func (r *Recorder) LogOperation(ctx context.Context, rec store.OperationRecord) error {
	row := &model.BotOperationModel{
		TraceID:       rec.TraceID,
		Operation:     rec.Operation,
		Symbol:        rec.Symbol,
		Direction:     rec.Direction,
		TargetPortion: rec.Portion,
		Leverage:      rec.Leverage,
		Reason:        rec.Reason,
		Provider:      rec.Provider,
		Executed:      rec.Executed,
		Decision:      toJSON(rec.Decision),
		Execution:     toJSON(rec.Execution),
		Indicators:    toJSON(rec.Indicators),
		Feeds:         toJSON(rec.Feeds),
		SystemPrompt:  rec.SystemPrompt,
		RawResponse:   rec.RawResponse,
		CreatedAt:     r.stamp(rec.At),
	}
	return r.tx(ctx, func(uow store.UnitOfWork) error {
		return uow.Operations().Insert(ctx, row)
	})
}

func (r *Recorder) LogAccountStatus(ctx context.Context, rec store.AccountRecord) error {
	row := &model.AccountSnapshotModel{
		TraceID:   rec.TraceID,
		Quote:     rec.Quote,
		Balance:   rec.Balance,
		Available: rec.Available,
		Positions: toJSON(rec.Positions),
		CreatedAt: r.stamp(rec.At),
	}
	return r.tx(ctx, func(uow store.UnitOfWork) error {
		return uow.Accounts().Insert(ctx, row)
	})
}

func (r *Recorder) LogError(ctx context.Context, rec store.ErrorRecord) error {
	row := &model.ErrorLogModel{
		TraceID:   rec.TraceID,
		Stage:     rec.Stage,
		Kind:      rec.Kind,
		Message:   rec.Message,
		Context:   toJSON(rec.Context),
		CreatedAt: r.stamp(rec.At),
	}
	return r.tx(ctx, func(uow store.UnitOfWork) error {
		return uow.Errors().Insert(ctx, row)
	})
}

func (r *Recorder) ListOperations(ctx context.Context, symbol string, limit int) ([]model.BotOperationModel, error) {
	return r.store.View(ctx).Operations().ListRecent(ctx, symbol, limit)
}

func (r *Recorder) LastOperation(ctx context.Context) (*model.BotOperationModel, error) {
	return r.store.View(ctx).Operations().Last(ctx)
}

func (r *Recorder) LastAccount(ctx context.Context) (*model.AccountSnapshotModel, error) {
	return r.store.View(ctx).Accounts().Last(ctx)
}

func (r *Recorder) ListErrors(ctx context.Context, limit int) ([]model.ErrorLogModel, error) {
	return r.store.View(ctx).Errors().ListRecent(ctx, limit)
}

func (r *Recorder) tx(ctx context.Context, fn func(store.UnitOfWork) error) error {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

func (r *Recorder) stamp(at time.Time) int64 {
	if at.IsZero() {
		at = r.nowFn()
	}
	return at.UnixMilli()
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return datatypes.JSON(raw)
	}
	if s, ok := v.(string); ok && json.Valid([]byte(s)) {
		return datatypes.JSON(s)
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
	}
	return datatypes.JSON(b)
}
