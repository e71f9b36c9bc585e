package inventory

import (
	"context"
	"time"
)

// StatusEngine defines the operations the surrounding API layer uses
// APIレイヤーが利用する在庫ステータスエンジンのインターフェース
type StatusEngine interface {
	// 純粋関数 - Pure computations over a snapshot
	Classify(item InventoryItem, now time.Time) StatusCategory
	Aggregate(items []InventoryItem, now time.Time) Summary
	Query(items []InventoryItem, filter Filter, page, pageSize int, now time.Time) Page

	// スナップショット - Snapshot access
	Snapshot(ctx context.Context, facility string) ([]InventoryItem, error)
	Dashboard(ctx context.Context, facility string, now time.Time) (*Summary, error)
	Search(ctx context.Context, facility string, filter Filter, page, pageSize int, now time.Time) (*Page, error)
	Ingest(ctx context.Context, items []InventoryItem) (int, error)
	GetItem(ctx context.Context, facility, itemCode string) (*InventoryItem, error)
	DeleteItem(ctx context.Context, facility, itemCode string) error
	Describe(item InventoryItem, now time.Time) ItemView

	// 移動履歴 - Movement history
	RecordMovement(ctx context.Context, movement *StockMovement) error
	ListMovements(ctx context.Context, facility, itemCode string, limit int) ([]StockMovement, error)

	// アラート - Alerts
	ScanAlerts(ctx context.Context, facility string, now time.Time) (*AlertScanResult, error)

	Ping(ctx context.Context) error
}

// Storage supplies inventory snapshots and movement history
// 在庫スナップショットと移動履歴の永続化層インターフェース
type Storage interface {
	// Item snapshot
	ListItems(ctx context.Context, facility string) ([]InventoryItem, error)
	GetItem(ctx context.Context, facility, itemCode string) (*InventoryItem, error)
	UpsertItem(ctx context.Context, item *InventoryItem) error
	DeleteItem(ctx context.Context, facility, itemCode string) error

	// Movement history
	CreateMovement(ctx context.Context, movement *StockMovement) error
	ListMovements(ctx context.Context, facility, itemCode string, limit int) ([]StockMovement, error)

	// Health check
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher publishes status alerts to downstream consumers
// ステータスアラートを発行するインターフェース
type EventPublisher interface {
	PublishStatusAlert(ctx context.Context, event StatusAlertEvent) error
}

// StatusAlertEvent is raised for an item that needs attention
// 対応が必要な品目のアラートイベント
type StatusAlertEvent struct {
	ID              string         `json:"id"`
	ItemCode        string         `json:"item_code"`
	ItemName        string         `json:"item_name"`
	FacilityName    string         `json:"facility_name"`
	Status          StatusCategory `json:"status"`
	Severity        string         `json:"severity"`
	Quantity        int64          `json:"quantity"`
	ReorderLevel    int64          `json:"reorder_level"`
	DaysUntilExpiry *int           `json:"days_until_expiry,omitempty"`
	Message         string         `json:"message"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Alert severities
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// AlertScanResult reports the outcome of one alert scan
// アラートスキャン結果
type AlertScanResult struct {
	Scanned   int                `json:"scanned"`
	Raised    int                `json:"raised"`
	Failed    int                `json:"failed"`
	Events    []StatusAlertEvent `json:"events"`
	ScannedAt time.Time          `json:"scanned_at"`
}
