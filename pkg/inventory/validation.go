package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fieldNames maps struct field names to their wire names
var fieldNames = map[string]string{
	"ItemCode":     "item_code",
	"ItemName":     "item_name",
	"Category":     "category",
	"Quantity":     "quantity",
	"ReorderLevel": "reorder_level",
	"FacilityName": "facility_name",
	"Type":         "type",
	"Delta":        "delta",
	"Counterparty": "counterparty",
	"Reference":    "reference",
}

// ValidateItem validates a single inventory record before ingestion.
// Negative quantity or reorder level is rejected with an error wrapping
// ErrInvalidQuantity rather than coerced.
// 品目をバリデーション
func ValidateItem(item *InventoryItem) error {
	if item == nil {
		return NewValidationError("item", "品目が指定されていません", "nil")
	}

	// 分類の優先順位を壊すため負数は専用エラー
	if item.Quantity < 0 {
		return newInvalidQuantityError("quantity", item.Quantity)
	}
	if item.ReorderLevel < 0 {
		return newInvalidQuantityError("reorder_level", item.ReorderLevel)
	}
	if item.UnitCost.IsNegative() {
		return NewValidationError("unit_cost", "単価は0以上である必要があります", item.UnitCost.String())
	}

	return structError(validate.Struct(item))
}

// ValidateSnapshot validates every record and rejects duplicate
// facility/item code pairs
// スナップショット全体をバリデーション
func ValidateSnapshot(items []InventoryItem) error {
	seen := make(map[ItemKey]int, len(items))
	for i := range items {
		if err := ValidateItem(&items[i]); err != nil {
			return fmt.Errorf("品目[%d]: %w", i, err)
		}
		key := items[i].Key()
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("品目[%d]と品目[%d] (%s/%s): %w", prev, i, key.FacilityName, key.ItemCode, ErrDuplicateItem)
		}
		seen[key] = i
	}
	return nil
}

// ValidateMovement validates a stock movement record
// 在庫移動記録をバリデーション
func ValidateMovement(m *StockMovement) error {
	if m == nil {
		return NewValidationError("movement", "移動記録が指定されていません", "nil")
	}
	if err := structError(validate.Struct(m)); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.cause = ErrInvalidMovement
		}
		return err
	}
	return nil
}

// NormalizeItem trims identity fields, fills in the default facility label
// and drops zero-date expiry placeholders
// 品目を正規化
func NormalizeItem(item InventoryItem, defaultFacility string) InventoryItem {
	if defaultFacility == "" {
		defaultFacility = DefaultFacilityName
	}

	item.ItemCode = strings.TrimSpace(item.ItemCode)
	item.ItemName = strings.TrimSpace(item.ItemName)
	item.Category = strings.TrimSpace(item.Category)
	item.FacilityName = strings.TrimSpace(item.FacilityName)
	if item.FacilityName == "" {
		item.FacilityName = defaultFacility
	}
	if item.ExpiryDate != nil && !HasExpiry(item.ExpiryDate) {
		item.ExpiryDate = nil
	}

	return item
}

// structError converts the first validator failure into a ValidationError
func structError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return NewValidationError("struct", err.Error(), "")
	}

	fe := fieldErrs[0]
	field, ok := fieldNames[fe.StructField()]
	if !ok {
		field = fe.Field()
	}
	return NewValidationError(field, formatValidationError(fe), fmt.Sprintf("%v", fe.Value()))
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "max":
		return fe.Param() + "文字以内である必要があります"
	case "gte":
		return fe.Param() + "以上である必要があります"
	case "ne":
		return fe.Param() + "以外である必要があります"
	case "oneof":
		return "次のいずれかである必要があります: " + fe.Param()
	default:
		return "無効な値です"
	}
}
