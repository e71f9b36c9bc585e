package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine implements the StatusEngine interface on top of a snapshot source
// StatusEngineインターフェースの実装
type Engine struct {
	classifier Classifier     // 分類器
	storage    Storage        // スナップショット取得元
	publisher  EventPublisher // アラート発行者
	metrics    *Metrics       // メトリクス
	logger     *zap.Logger    // ログ
	config     *Config        // 設定
}

var _ StatusEngine = (*Engine)(nil)

// Config holds configuration for the status engine
// ステータスエンジンの設定を保持
type Config struct {
	NearExpiryDays  int    `yaml:"near_expiry_days"` // 期限切れ間近の閾値（日）
	PageSize        int    `yaml:"page_size"`        // 一覧のページサイズ
	PreviewSize     int    `yaml:"preview_size"`     // ダッシュボードのプレビュー件数
	DefaultFacility string `yaml:"default_facility"` // デフォルト施設名
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *Config {
	return &Config{
		NearExpiryDays:  DefaultNearExpiryDays,
		PageSize:        DefaultPageSize,
		PreviewSize:     5,
		DefaultFacility: DefaultFacilityName,
	}
}

// NewEngine creates a new status engine. storage, publisher and metrics
// may be nil; the pure operations work without them.
// 新しいステータスエンジンを作成
func NewEngine(storage Storage, publisher EventPublisher, metrics *Metrics, logger *zap.Logger, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	config = &cfg
	if config.PageSize <= 0 {
		config.PageSize = DefaultPageSize
	}
	if config.DefaultFacility == "" {
		config.DefaultFacility = DefaultFacilityName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		classifier: NewClassifier(config.NearExpiryDays),
		storage:    storage,
		publisher:  publisher,
		metrics:    metrics,
		logger:     logger,
		config:     config,
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return *e.config
}

// Classify classifies a single item
// 品目を分類
func (e *Engine) Classify(item InventoryItem, now time.Time) StatusCategory {
	return e.classifier.Classify(item, now)
}

// Aggregate partitions items by status and totals their value
// 品目を集計
func (e *Engine) Aggregate(items []InventoryItem, now time.Time) Summary {
	return e.classifier.Aggregate(items, now)
}

// Query filters and paginates items; a non-positive page size uses the
// configured one
// 品目を絞り込みページング
func (e *Engine) Query(items []InventoryItem, filter Filter, page, pageSize int, now time.Time) Page {
	if pageSize <= 0 {
		pageSize = e.config.PageSize
	}
	return e.classifier.Query(items, filter, page, pageSize, now)
}

// Describe decorates an item with its derived values
func (e *Engine) Describe(item InventoryItem, now time.Time) ItemView {
	return e.classifier.Describe(item, now)
}

// Snapshot loads a full replacement snapshot, optionally for one facility
// 在庫スナップショットを取得
func (e *Engine) Snapshot(ctx context.Context, facility string) ([]InventoryItem, error) {
	if e.storage == nil {
		return nil, ErrSnapshotUnavailable
	}

	items, err := e.storage.ListItems(ctx, facility)
	if err != nil {
		return nil, NewStorageError("list_items", "スナップショット取得に失敗しました", err)
	}

	for i := range items {
		items[i] = NormalizeItem(items[i], e.config.DefaultFacility)
	}

	return items, nil
}

// Dashboard aggregates the current snapshot
// ダッシュボード集計を取得
func (e *Engine) Dashboard(ctx context.Context, facility string, now time.Time) (*Summary, error) {
	items, err := e.Snapshot(ctx, facility)
	if err != nil {
		return nil, err
	}

	summary := e.Aggregate(items, now)
	e.metrics.observeSummary(facility, &summary)

	e.logger.Debug("ダッシュボード集計完了",
		zap.String("facility", facility),
		zap.Int("total_items", summary.TotalItems),
		zap.String("total_value", summary.TotalValue.StringFixed(valueScale)),
	)

	return &summary, nil
}

// Search queries the current snapshot
// スナップショットを検索
func (e *Engine) Search(ctx context.Context, facility string, filter Filter, page, pageSize int, now time.Time) (*Page, error) {
	items, err := e.Snapshot(ctx, facility)
	if err != nil {
		return nil, err
	}

	result := e.Query(items, filter, page, pageSize, now)
	e.metrics.observeQuery(&result)

	return &result, nil
}

// Ingest validates a snapshot and writes every record. Nothing is written
// when any record is invalid.
// スナップショットを取り込み
func (e *Engine) Ingest(ctx context.Context, items []InventoryItem) (int, error) {
	if e.storage == nil {
		return 0, ErrSnapshotUnavailable
	}

	normalized := make([]InventoryItem, len(items))
	for i, item := range items {
		normalized[i] = NormalizeItem(item, e.config.DefaultFacility)
	}

	if err := ValidateSnapshot(normalized); err != nil {
		e.logger.Warn("スナップショットのバリデーションに失敗しました", zap.Error(err))
		return 0, err
	}

	now := time.Now()
	written := 0
	for i := range normalized {
		normalized[i].UpdatedAt = now
		if err := e.storage.UpsertItem(ctx, &normalized[i]); err != nil {
			return written, NewStorageError("upsert_item", "品目の保存に失敗しました", err)
		}
		written++
	}

	e.logger.Info("スナップショット取り込み完了", zap.Int("count", written))

	return written, nil
}

// GetItem gets one item by facility and item code
// 品目を取得
func (e *Engine) GetItem(ctx context.Context, facility, itemCode string) (*InventoryItem, error) {
	if e.storage == nil {
		return nil, ErrSnapshotUnavailable
	}
	if itemCode == "" {
		return nil, NewValidationError("item_code", "品目コードが指定されていません", "")
	}
	if facility == "" {
		facility = e.config.DefaultFacility
	}

	item, err := e.storage.GetItem(ctx, facility, itemCode)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, NewStorageError("get_item", "品目取得に失敗しました", err)
	}

	normalized := NormalizeItem(*item, e.config.DefaultFacility)
	return &normalized, nil
}

// DeleteItem removes one item
// 品目を削除
func (e *Engine) DeleteItem(ctx context.Context, facility, itemCode string) error {
	if e.storage == nil {
		return ErrSnapshotUnavailable
	}
	if itemCode == "" {
		return NewValidationError("item_code", "品目コードが指定されていません", "")
	}
	if facility == "" {
		facility = e.config.DefaultFacility
	}

	if err := e.storage.DeleteItem(ctx, facility, itemCode); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return ErrItemNotFound
		}
		return NewStorageError("delete_item", "品目削除に失敗しました", err)
	}

	e.logger.Info("品目削除完了",
		zap.String("facility", facility),
		zap.String("item_code", itemCode),
	)

	return nil
}

// ScanAlerts publishes one alert per item that is out of stock, low on
// stock or near expiry. Publication failures are logged and counted.
// アラートスキャンを実行
func (e *Engine) ScanAlerts(ctx context.Context, facility string, now time.Time) (*AlertScanResult, error) {
	items, err := e.Snapshot(ctx, facility)
	if err != nil {
		return nil, err
	}

	result := &AlertScanResult{
		Scanned:   len(items),
		Events:    []StatusAlertEvent{},
		ScannedAt: now,
	}

	for _, item := range items {
		view := e.Describe(item, now)
		if view.Status == StatusInStock {
			continue
		}

		event := newStatusAlertEvent(view, now)
		result.Events = append(result.Events, event)

		if e.publisher == nil {
			continue
		}
		if err := e.publisher.PublishStatusAlert(ctx, event); err != nil {
			e.logger.Error("アラート発行に失敗しました",
				zap.String("item_code", item.ItemCode),
				zap.String("facility", item.FacilityName),
				zap.Error(err),
			)
			e.metrics.observeAlert(view.Status, err)
			result.Failed++
			continue
		}
		e.metrics.observeAlert(view.Status, nil)
		result.Raised++
	}

	e.logger.Info("アラートスキャン完了",
		zap.String("facility", facility),
		zap.Int("scanned", result.Scanned),
		zap.Int("alerts", len(result.Events)),
		zap.Int("failed", result.Failed),
	)

	return result, nil
}

// Ping checks the snapshot source
func (e *Engine) Ping(ctx context.Context) error {
	if e.storage == nil {
		return ErrSnapshotUnavailable
	}
	return e.storage.Ping(ctx)
}

func newStatusAlertEvent(view ItemView, now time.Time) StatusAlertEvent {
	event := StatusAlertEvent{
		ID:              NewEventID(),
		ItemCode:        view.ItemCode,
		ItemName:        view.ItemName,
		FacilityName:    view.FacilityName,
		Status:          view.Status,
		Severity:        SeverityWarning,
		Quantity:        view.Quantity,
		ReorderLevel:    view.ReorderLevel,
		DaysUntilExpiry: view.DaysUntilExpiry,
		Timestamp:       now,
	}

	switch view.Status {
	case StatusOutOfStock:
		event.Severity = SeverityCritical
		event.Message = fmt.Sprintf("%s (%s) は在庫切れです", view.ItemName, view.FacilityName)
	case StatusLowStock:
		if view.Quantity < view.ReorderLevel/2 {
			event.Severity = SeverityCritical
		}
		event.Message = fmt.Sprintf("%s (%s) の在庫が低下しています (現在: %d, 発注点: %d)",
			view.ItemName, view.FacilityName, view.Quantity, view.ReorderLevel)
	case StatusNearExpiry:
		days := 0
		if view.DaysUntilExpiry != nil {
			days = *view.DaysUntilExpiry
		}
		if days < 0 {
			event.Severity = SeverityCritical
			event.Message = fmt.Sprintf("%s (%s) は %d 日前に期限切れになりました", view.ItemName, view.FacilityName, -days)
		} else {
			event.Message = fmt.Sprintf("%s (%s) は %d 日後に期限切れになります", view.ItemName, view.FacilityName, days)
		}
	}

	return event
}
