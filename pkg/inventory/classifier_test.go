package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	inDays := func(n int) *time.Time {
		e := testNow.AddDate(0, 0, n)
		return &e
	}

	tests := []struct {
		name     string
		quantity int64
		reorder  int64
		expiry   *time.Time
		window   int
		want     StatusCategory
	}{
		{"在庫切れは期限より優先", 0, 10, inDays(5), 30, StatusOutOfStock},
		{"在庫切れ（発注点0）", 0, 0, nil, 30, StatusOutOfStock},
		{"低在庫は期限より優先", 5, 10, inDays(5), 30, StatusLowStock},
		{"発注点ちょうどは低在庫ではない", 10, 10, nil, 30, StatusInStock},
		{"期限切れ間近", 100, 10, inDays(15), 30, StatusNearExpiry},
		{"閾値10日では在庫あり", 100, 10, inDays(15), 10, StatusInStock},
		{"閾値ちょうど", 100, 10, inDays(30), 30, StatusNearExpiry},
		{"閾値の翌日", 100, 10, inDays(31), 30, StatusInStock},
		{"期限切れ済み", 100, 10, inDays(-3), 30, StatusNearExpiry},
		{"期限なし", 100, 10, nil, 30, StatusInStock},
		{"閾値0で当日期限", 100, 10, inDays(0), 0, StatusNearExpiry},
		{"閾値0で翌日期限", 100, 10, inDays(1), 0, StatusInStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := InventoryItem{
				ItemCode:     "TEST-ITEM",
				ItemName:     "テスト品目",
				Quantity:     tt.quantity,
				ReorderLevel: tt.reorder,
				ExpiryDate:   tt.expiry,
			}

			got := NewClassifier(tt.window).Classify(item, testNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_ZeroDateIsNoExpiry(t *testing.T) {
	item := InventoryItem{Quantity: 100, ReorderLevel: 10, ExpiryDate: datePtr(1, 1, 1)}
	assert.Equal(t, StatusInStock, Classify(item, testNow))
}

func TestNewClassifier_NegativeWindowUsesDefault(t *testing.T) {
	assert.Equal(t, DefaultNearExpiryDays, NewClassifier(-1).NearExpiryDays)
	assert.Equal(t, 0, NewClassifier(0).NearExpiryDays)
}

func TestClassify_IsDeterministic(t *testing.T) {
	item := InventoryItem{Quantity: 3, ReorderLevel: 2, ExpiryDate: datePtr(2024, 6, 20)}
	first := Classify(item, testNow)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Classify(item, testNow))
	}
}

func TestStatusCategory_Label(t *testing.T) {
	assert.Equal(t, "Out of Stock", StatusOutOfStock.Label())
	assert.Equal(t, "Low Stock", StatusLowStock.Label())
	assert.Equal(t, "Near Expiry", StatusNearExpiry.Label())
	assert.Equal(t, "In Stock", StatusInStock.Label())
	assert.False(t, StatusCategory("expired").Valid())
}

func TestParseStatusCategory(t *testing.T) {
	for _, s := range []string{"low_stock", "Low Stock", "LOW-STOCK", " lowstock "} {
		got, err := ParseStatusCategory(s)
		assert.NoError(t, err, s)
		assert.Equal(t, StatusLowStock, got, s)
	}

	_, err := ParseStatusCategory("expired")
	assert.True(t, IsValidationError(err))
}
