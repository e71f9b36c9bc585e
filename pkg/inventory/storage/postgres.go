package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/pkg/inventory"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// PostgreSQLStorage implements the Storage interface using PostgreSQL
// PostgreSQLを使用したStorageインターフェースの実装
type PostgreSQLStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ inventory.Storage = (*PostgreSQLStorage)(nil)

// PoolConfig holds connection pool settings
// 接続プール設定
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewPostgreSQLStorage opens and pings a PostgreSQL connection
// 新しいPostgreSQLストレージインスタンスを作成
func NewPostgreSQLStorage(dsn string, pool PoolConfig, logger *zap.Logger) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
	}

	// 接続テスト
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースpingに失敗しました: %w", err)
	}

	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 25
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 10
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return NewPostgreSQLStorageFromDB(db, logger), nil
}

// NewPostgreSQLStorageFromDB wraps an existing database handle
func NewPostgreSQLStorageFromDB(db *sql.DB, logger *zap.Logger) *PostgreSQLStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgreSQLStorage{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `item_code, item_name, category, quantity, reorder_level, unit_cost, expiry_date, facility_name, updated_at`

// ListItems returns the full snapshot, or one facility's items when facility is set
// 在庫スナップショットを取得
func (s *PostgreSQLStorage) ListItems(ctx context.Context, facility string) ([]inventory.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items`
	args := []interface{}{}
	if facility != "" {
		query += ` WHERE facility_name = $1`
		args = append(args, facility)
	}
	query += ` ORDER BY facility_name, item_code`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("品目一覧取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := []inventory.InventoryItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("品目一覧の読み込みに失敗しました: %w", err)
	}

	return items, nil
}

// GetItem retrieves one item
// 品目を取得
func (s *PostgreSQLStorage) GetItem(ctx context.Context, facility, itemCode string) (*inventory.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE facility_name = $1 AND item_code = $2`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, facility, itemCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrItemNotFound
		}
		return nil, err
	}

	return item, nil
}

// UpsertItem inserts an item or replaces the stored one
// 品目を作成または置換
func (s *PostgreSQLStorage) UpsertItem(ctx context.Context, item *inventory.InventoryItem) error {
	query := `
		INSERT INTO inventory_items (item_code, item_name, category, quantity, reorder_level, unit_cost, expiry_date, facility_name, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (facility_name, item_code) DO UPDATE
		SET item_name = EXCLUDED.item_name, category = EXCLUDED.category, quantity = EXCLUDED.quantity,
			reorder_level = EXCLUDED.reorder_level, unit_cost = EXCLUDED.unit_cost,
			expiry_date = EXCLUDED.expiry_date, updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		item.ItemCode,
		item.ItemName,
		item.Category,
		item.Quantity,
		item.ReorderLevel,
		item.UnitCost,
		item.ExpiryDate,
		item.FacilityName,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("品目保存に失敗しました: %w", err)
	}

	return nil
}

// DeleteItem deletes one item
// 品目を削除
func (s *PostgreSQLStorage) DeleteItem(ctx context.Context, facility, itemCode string) error {
	query := `DELETE FROM inventory_items WHERE facility_name = $1 AND item_code = $2`

	result, err := s.db.ExecContext(ctx, query, facility, itemCode)
	if err != nil {
		return fmt.Errorf("品目削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
	}

	if rowsAffected == 0 {
		return inventory.ErrItemNotFound
	}

	return nil
}

// CreateMovement appends a movement record
// 移動記録を作成
func (s *PostgreSQLStorage) CreateMovement(ctx context.Context, m *inventory.StockMovement) error {
	query := `
		INSERT INTO stock_movements (id, item_code, facility_name, type, delta, counterparty, reference, timestamp, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.ItemCode,
		m.FacilityName,
		m.Type,
		m.Delta,
		m.Counterparty,
		m.Reference,
		m.Timestamp,
		m.CreatedBy,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("移動記録 %s: %w", m.ID, inventory.ErrDuplicateMovement)
		}
		return fmt.Errorf("移動記録作成に失敗しました: %w", err)
	}

	return nil
}

// ListMovements returns the movement history of an item, newest first
// 品目の移動履歴を取得
func (s *PostgreSQLStorage) ListMovements(ctx context.Context, facility, itemCode string, limit int) ([]inventory.StockMovement, error) {
	query := `
		SELECT id, item_code, facility_name, type, delta, counterparty, reference, timestamp, created_by
		FROM stock_movements
		WHERE facility_name = $1 AND item_code = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, facility, itemCode, limit)
	if err != nil {
		return nil, fmt.Errorf("移動履歴取得に失敗しました: %w", err)
	}
	defer rows.Close()

	movements := []inventory.StockMovement{}
	for rows.Next() {
		var m inventory.StockMovement
		if err := rows.Scan(
			&m.ID,
			&m.ItemCode,
			&m.FacilityName,
			&m.Type,
			&m.Delta,
			&m.Counterparty,
			&m.Reference,
			&m.Timestamp,
			&m.CreatedBy,
		); err != nil {
			return nil, fmt.Errorf("移動記録スキャンに失敗しました: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("移動履歴の読み込みに失敗しました: %w", err)
	}

	return movements, nil
}

// Ping checks database connectivity
// データベース接続をチェック
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
// データベース接続を閉じる
func (s *PostgreSQLStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*inventory.InventoryItem, error) {
	var (
		item     inventory.InventoryItem
		category sql.NullString
		expiry   pq.NullTime
	)

	err := row.Scan(
		&item.ItemCode,
		&item.ItemName,
		&category,
		&item.Quantity,
		&item.ReorderLevel,
		&item.UnitCost,
		&expiry,
		&item.FacilityName,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("品目スキャンに失敗しました: %w", err)
	}

	item.Category = category.String
	if expiry.Valid {
		date := expiry.Time
		item.ExpiryDate = &date
	}

	return &item, nil
}
