package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/internal/config"
	"github.com/nemonet1337/medstock/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("MEDSTOCK_CONFIG"), "YAML設定ファイルのパス")
	migrationDir := flag.String("dir", "migrations", "マイグレーションディレクトリ")
	flag.Parse()

	// 設定読み込み
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	logger.Info("medstock マイグレーション実行ツール",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// 接続テスト
	if err := db.Ping(); err != nil {
		logger.Fatal("データベースpingに失敗しました", zap.Error(err))
	}

	// マイグレーションディレクトリの確認
	if _, err := os.Stat(*migrationDir); os.IsNotExist(err) {
		logger.Fatal("マイグレーションディレクトリが見つかりません", zap.String("dir", *migrationDir))
	}

	m := &migrator{db: db, logger: logger}
	ctx := context.Background()

	// マイグレーション履歴テーブルの作成
	if err := m.createMigrationTable(ctx); err != nil {
		logger.Fatal("マイグレーション履歴テーブル作成に失敗しました", zap.Error(err))
	}

	// マイグレーション実行
	applied, err := m.run(ctx, *migrationDir)
	if err != nil {
		logger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	logger.Info("すべてのマイグレーションが完了しました", zap.Int("applied", applied))
}

// migrator applies SQL files in filename order, once each
type migrator struct {
	db     *sql.DB
	logger *zap.Logger
}

// createMigrationTable マイグレーション履歴テーブルを作成
func (m *migrator) createMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) NOT NULL UNIQUE,
			executed_at TIMESTAMP NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}

	m.logger.Debug("マイグレーション履歴テーブルを確認/作成しました")
	return nil
}

// run マイグレーションを実行し、適用した件数を返す
func (m *migrator) run(ctx context.Context, migrationDir string) (int, error) {
	// .sqlファイルを取得
	files, err := filepath.Glob(filepath.Join(migrationDir, "*.sql"))
	if err != nil {
		return 0, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}

	if len(files) == 0 {
		m.logger.Warn("マイグレーションファイルが見つかりません", zap.String("dir", migrationDir))
		return 0, nil
	}

	// ファイル名でソート
	sort.Strings(files)

	// 実行済みマイグレーションを取得
	executed, err := m.executedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)

		content, err := os.ReadFile(file)
		if err != nil {
			return applied, fmt.Errorf("ファイル読み込みエラー %s: %w", filename, err)
		}
		checksum := calculateChecksum(content)

		// 既に実行済みかチェック
		if stored, ok := executed[filename]; ok {
			if stored != checksum {
				m.logger.Warn("実行済みマイグレーションの内容が変更されています",
					zap.String("file", filename),
					zap.String("stored_checksum", stored),
					zap.String("checksum", checksum),
				)
			}
			m.logger.Info("スキップ (実行済み)", zap.String("file", filename))
			continue
		}

		m.logger.Info("実行中", zap.String("file", filename))
		if err := m.apply(ctx, filename, string(content), checksum); err != nil {
			return applied, err
		}
		applied++
		m.logger.Info("完了", zap.String("file", filename))
	}

	return applied, nil
}

// apply runs one migration and records it in a single transaction
func (m *migrator) apply(ctx context.Context, filename, content, checksum string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始エラー %s: %w", filename, err)
	}

	if _, err := tx.ExecContext(ctx, content); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション実行エラー %s: %w", filename, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
		filename, checksum,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", filename, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションコミットエラー %s: %w", filename, err)
	}

	return nil
}

// executedMigrations 実行済みマイグレーションとチェックサムを取得
func (m *migrator) executedMigrations(ctx context.Context) (map[string]string, error) {
	executed := make(map[string]string)

	rows, err := m.db.QueryContext(ctx, "SELECT filename, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename, checksum string
		if err := rows.Scan(&filename, &checksum); err != nil {
			return nil, err
		}
		executed[filename] = checksum
	}

	return executed, rows.Err()
}

// calculateChecksum ファイル内容のSHA-256チェックサムを計算
func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
