// Package inventory provides the inventory status engine for the hospital warehouse portal
package inventory

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultFacilityName is used when a record does not name its facility
// 施設名が未設定の場合に使用する中央倉庫ラベル
const DefaultFacilityName = "Central Warehouse"

// InventoryItem represents one stock-keeping unit at one facility
// 施設ごとの在庫管理単位を表現
type InventoryItem struct {
	ItemCode     string          `json:"item_code" db:"item_code" validate:"required,max=255"`         // 品目コード（施設内で一意）
	ItemName     string          `json:"item_name" db:"item_name" validate:"required,max=500"`         // 品目名
	Category     string          `json:"category" db:"category" validate:"max=255"`                    // カテゴリ
	Quantity     int64           `json:"quantity" db:"quantity" validate:"gte=0"`                      // 在庫数量
	ReorderLevel int64           `json:"reorder_level" db:"reorder_level" validate:"gte=0"`            // 発注点
	UnitCost     decimal.Decimal `json:"unit_cost" db:"unit_cost"`                                     // 単価
	ExpiryDate   *time.Time      `json:"expiry_date,omitempty" db:"expiry_date"`                       // 有効期限（非消耗品はnil）
	FacilityName string          `json:"facility_name" db:"facility_name" validate:"max=255"`          // 施設名
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`                                   // 更新日時
}

// LineValue returns quantity * unit cost without rounding
// 数量×単価（丸めなし）を返す
func (i InventoryItem) LineValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.Quantity))
}

// Key identifies an item within the whole estate
// 全施設で品目を一意に識別するキー
func (i InventoryItem) Key() ItemKey {
	return ItemKey{FacilityName: i.FacilityName, ItemCode: i.ItemCode}
}

// ItemKey is the (facility, item code) identity of an item
type ItemKey struct {
	FacilityName string
	ItemCode     string
}

// StatusCategory is the computed status of an item; it is never stored
// 品目の算出ステータス（保存されない）
type StatusCategory string

const (
	StatusOutOfStock StatusCategory = "out_of_stock" // 在庫切れ
	StatusLowStock   StatusCategory = "low_stock"    // 低在庫
	StatusNearExpiry StatusCategory = "near_expiry"  // 期限切れ間近
	StatusInStock    StatusCategory = "in_stock"     // 在庫あり
)

// StatusCategories lists every category in classification precedence order
var StatusCategories = []StatusCategory{
	StatusOutOfStock,
	StatusLowStock,
	StatusNearExpiry,
	StatusInStock,
}

// Label returns the display label used by the dashboard screens
func (s StatusCategory) Label() string {
	switch s {
	case StatusOutOfStock:
		return "Out of Stock"
	case StatusLowStock:
		return "Low Stock"
	case StatusNearExpiry:
		return "Near Expiry"
	case StatusInStock:
		return "In Stock"
	default:
		return "Unknown"
	}
}

// Valid reports whether s is one of the four categories
func (s StatusCategory) Valid() bool {
	switch s {
	case StatusOutOfStock, StatusLowStock, StatusNearExpiry, StatusInStock:
		return true
	}
	return false
}

// ParseStatusCategory accepts the wire value ("low_stock") or the display
// label ("Low Stock"), case-insensitively
// ステータス文字列を解析
func ParseStatusCategory(s string) (StatusCategory, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "out_of_stock", "outofstock":
		return StatusOutOfStock, nil
	case "low_stock", "lowstock":
		return StatusLowStock, nil
	case "near_expiry", "nearexpiry":
		return StatusNearExpiry, nil
	case "in_stock", "instock":
		return StatusInStock, nil
	}
	return "", NewValidationError("status", "無効なステータスです", s)
}

// StockMovement is an immutable historical record of a quantity change
// 在庫数量変更の不変な履歴記録を表現
type StockMovement struct {
	ID           string       `json:"id" db:"id"`                                                                // 移動ID
	ItemCode     string       `json:"item_code" db:"item_code" validate:"required,max=255"`                      // 品目コード
	FacilityName string       `json:"facility_name" db:"facility_name" validate:"max=255"`                       // 施設名
	Type         MovementType `json:"type" db:"type" validate:"required,oneof=stock_in dispatch adjustment transfer"` // 移動タイプ
	Delta        int64        `json:"delta" db:"delta" validate:"ne=0"`                                          // 符号付き数量変化
	Counterparty string       `json:"counterparty" db:"counterparty" validate:"max=255"`                         // 相手先（施設・仕入先）
	Reference    string       `json:"reference" db:"reference" validate:"max=500"`                               // 参照番号
	Timestamp    time.Time    `json:"timestamp" db:"timestamp"`                                                  // 発生日時
	CreatedBy    string       `json:"created_by" db:"created_by"`                                                // 作成者
}

// MovementType defines the kind of stock movement
// 在庫移動のタイプを定義
type MovementType string

const (
	MovementTypeStockIn    MovementType = "stock_in"   // 入庫
	MovementTypeDispatch   MovementType = "dispatch"   // 払出
	MovementTypeAdjustment MovementType = "adjustment" // 調整
	MovementTypeTransfer   MovementType = "transfer"   // 移送
)

// NewMovementID generates a new movement ID
// 新しい移動IDを生成
func NewMovementID() string {
	return uuid.New().String()
}

// NewEventID generates a new alert event ID
func NewEventID() string {
	return uuid.New().String()
}
