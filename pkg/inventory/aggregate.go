package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// valueScale is the number of decimal places kept in monetary totals
const valueScale = 2

// Summary holds the per-status partition of a snapshot and its total value
// スナップショットのステータス別集計と総在庫金額を保持
type Summary struct {
	Counts     map[StatusCategory]int             `json:"counts"`      // ステータス別件数
	Buckets    map[StatusCategory][]InventoryItem `json:"buckets"`     // ステータス別品目
	TotalItems int                                `json:"total_items"` // 総品目数
	TotalValue decimal.Decimal                    `json:"total_value"` // 総在庫金額（小数2桁）
}

// Preview returns at most n leading items of the bucket for status
// ダッシュボード表示用に先頭n件を返す
func (s Summary) Preview(status StatusCategory, n int) []InventoryItem {
	bucket := s.Buckets[status]
	if n < 0 || n >= len(bucket) {
		return bucket
	}
	return bucket[:n]
}

// ItemView is an item decorated with its derived values
// 派生値付きの品目ビュー
type ItemView struct {
	InventoryItem
	Status          StatusCategory  `json:"status"`
	StatusLabel     string          `json:"status_label"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
	LineValue       decimal.Decimal `json:"line_value"`
}

// Aggregate partitions items by status and totals their value. Every item
// lands in exactly one bucket, so the counts always sum to len(items).
// 品目をステータス別に分類し金額を集計
func (c Classifier) Aggregate(items []InventoryItem, now time.Time) Summary {
	summary := Summary{
		Counts:     make(map[StatusCategory]int, len(StatusCategories)),
		Buckets:    make(map[StatusCategory][]InventoryItem, len(StatusCategories)),
		TotalItems: len(items),
	}
	for _, status := range StatusCategories {
		summary.Counts[status] = 0
		summary.Buckets[status] = []InventoryItem{}
	}

	for _, item := range items {
		status := c.Classify(item, now)
		summary.Counts[status]++
		summary.Buckets[status] = append(summary.Buckets[status], item)
	}
	summary.TotalValue = TotalValue(items)

	return summary
}

// Aggregate aggregates items with the default near-expiry window
func Aggregate(items []InventoryItem, now time.Time) Summary {
	return NewClassifier(DefaultNearExpiryDays).Aggregate(items, now)
}

// TotalValue sums quantity * unit cost over items and rounds half away
// from zero to two decimal places
// 総在庫金額を計算
func TotalValue(items []InventoryItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineValue())
	}
	return total.Round(valueScale)
}

// Describe decorates item with its status, days to expiry and line value
func (c Classifier) Describe(item InventoryItem, now time.Time) ItemView {
	status := c.Classify(item, now)
	view := ItemView{
		InventoryItem: item,
		Status:        status,
		StatusLabel:   status.Label(),
		LineValue:     item.LineValue(),
	}
	if days, ok := DaysUntilExpiry(item.ExpiryDate, now); ok {
		view.DaysUntilExpiry = &days
	}
	return view
}
