package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// defaultMovementLimit caps history queries without an explicit limit
const defaultMovementLimit = 100

type contextKey string

// UserIDKey is the context key holding the acting user ID
const UserIDKey contextKey = "user_id"

// WithUserID returns a context carrying the acting user ID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RecordMovement appends a movement to the history. Movements are not
// applied to item quantities and are not reconciled against them.
// 在庫移動を記録
func (e *Engine) RecordMovement(ctx context.Context, movement *StockMovement) error {
	if e.storage == nil {
		return ErrSnapshotUnavailable
	}
	if err := ValidateMovement(movement); err != nil {
		return err
	}

	if movement.ID == "" {
		movement.ID = NewMovementID()
	}
	if movement.FacilityName == "" {
		movement.FacilityName = e.config.DefaultFacility
	}
	if movement.Timestamp.IsZero() {
		movement.Timestamp = time.Now()
	}
	if movement.CreatedBy == "" {
		movement.CreatedBy = getUserFromContext(ctx)
	}

	if err := e.storage.CreateMovement(ctx, movement); err != nil {
		return NewStorageError("create_movement", "移動記録作成に失敗しました", err)
	}

	e.logger.Info("在庫移動記録完了",
		zap.String("movement_id", movement.ID),
		zap.String("type", string(movement.Type)),
		zap.String("item_code", movement.ItemCode),
		zap.String("facility", movement.FacilityName),
		zap.Int64("delta", movement.Delta),
		zap.String("reference", movement.Reference),
	)

	return nil
}

// ListMovements returns the movement history of an item, newest first
// 品目の移動履歴を取得
func (e *Engine) ListMovements(ctx context.Context, facility, itemCode string, limit int) ([]StockMovement, error) {
	if e.storage == nil {
		return nil, ErrSnapshotUnavailable
	}
	if itemCode == "" {
		return nil, NewValidationError("item_code", "品目コードが指定されていません", "")
	}
	if facility == "" {
		facility = e.config.DefaultFacility
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}

	movements, err := e.storage.ListMovements(ctx, facility, itemCode, limit)
	if err != nil {
		return nil, NewStorageError("list_movements", "移動履歴取得に失敗しました", err)
	}

	return movements, nil
}

// getUserFromContext extracts user ID from context
// コンテキストからユーザーIDを取得
func getUserFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		return userID
	}
	return "system"
}
