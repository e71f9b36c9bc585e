package inventory

import (
	"errors"
	"fmt"
)

// Common inventory errors
// 共通の在庫エラー定義

var (
	// ErrItemNotFound is returned when an item doesn't exist
	// 品目が存在しない場合のエラー
	ErrItemNotFound = errors.New("品目が見つかりません")

	// ErrDuplicateItem is returned when a snapshot names the same facility/item code twice
	// 同一施設内で品目コードが重複している場合のエラー
	ErrDuplicateItem = errors.New("品目は既に存在します")

	// ErrDuplicateMovement is returned when a movement ID is already recorded
	// 移動記録IDが重複している場合のエラー
	ErrDuplicateMovement = errors.New("移動記録は既に存在します")

	// ErrInvalidDate is returned when an expiry date cannot be interpreted
	// 有効期限を解釈できない場合のエラー
	ErrInvalidDate = errors.New("無効な日付です")

	// ErrInvalidQuantity marks a negative quantity or reorder level
	// 数量または発注点が負の場合のエラー
	ErrInvalidQuantity = errors.New("数量と発注点は0以上である必要があります")

	// ErrInvalidMovement is returned when a movement record is malformed
	// 移動記録が不正な場合のエラー
	ErrInvalidMovement = errors.New("無効な移動記録です")

	// ErrSnapshotUnavailable is returned when no snapshot source is configured
	// スナップショット取得元が設定されていない場合のエラー
	ErrSnapshotUnavailable = errors.New("在庫スナップショットを取得できません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
	cause   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}

// StorageError represents a storage layer error
// ストレージ層のエラーを表現
type StorageError struct {
	Operation string `json:"operation"` // 操作名
	Message   string `json:"message"`   // エラーメッセージ
	Cause     error  `json:"cause"`     // 原因エラー
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ストレージエラー [%s]: %s (原因: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("ストレージエラー [%s]: %s", e.Operation, e.Message)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// newInvalidQuantityError creates the InvalidQuantityOrThreshold error for a field
func newInvalidQuantityError(field string, value int64) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "0以上である必要があります",
		Value:   fmt.Sprintf("%d", value),
		cause:   ErrInvalidQuantity,
	}
}

// NewStorageError creates a new storage error
// 新しいストレージエラーを作成
func NewStorageError(operation, message string, cause error) *StorageError {
	return &StorageError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// IsValidationError reports whether err is or wraps a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
