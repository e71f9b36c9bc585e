package inventory

import "time"

// DefaultNearExpiryDays is the default near-expiry window in days
// 期限切れ間近と判定するデフォルト日数
const DefaultNearExpiryDays = 30

// Classifier maps inventory records to a StatusCategory
// 品目をステータスに分類する
type Classifier struct {
	NearExpiryDays int // 期限切れ間近の閾値（日）
}

// NewClassifier creates a classifier with the given near-expiry window.
// A negative window falls back to DefaultNearExpiryDays.
func NewClassifier(nearExpiryDays int) Classifier {
	if nearExpiryDays < 0 {
		nearExpiryDays = DefaultNearExpiryDays
	}
	return Classifier{NearExpiryDays: nearExpiryDays}
}

// Classify returns exactly one status for item. Stock conditions take
// precedence over expiry: an out-of-stock or low-stock item is never
// reported as near expiry.
// 品目のステータスを判定（在庫状態が期限より優先）
func (c Classifier) Classify(item InventoryItem, now time.Time) StatusCategory {
	switch {
	case item.Quantity == 0:
		return StatusOutOfStock
	case item.Quantity > 0 && item.Quantity < item.ReorderLevel:
		return StatusLowStock
	}

	if days, ok := DaysUntilExpiry(item.ExpiryDate, now); ok && days <= c.NearExpiryDays {
		return StatusNearExpiry
	}

	return StatusInStock
}

// Classify classifies item with the default near-expiry window
func Classify(item InventoryItem, now time.Time) StatusCategory {
	return NewClassifier(DefaultNearExpiryDays).Classify(item, now)
}
