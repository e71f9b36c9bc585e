package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/internal/config"
	"github.com/nemonet1337/medstock/internal/logging"
	"github.com/nemonet1337/medstock/pkg/inventory"
	"github.com/nemonet1337/medstock/pkg/inventory/events"
	"github.com/nemonet1337/medstock/pkg/inventory/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("MEDSTOCK_CONFIG"), "YAML設定ファイルのパス")
	flag.Parse()

	// 設定読み込み
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("設定読み込みに失敗しました:", err)
	}

	// ログ設定
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました:", err)
	}
	defer logger.Sync()

	// ストレージ初期化
	store, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("ストレージ初期化に失敗しました", zap.Error(err))
	}
	defer store.Close()

	// アラート発行者初期化
	var publisher inventory.EventPublisher
	if cfg.Messaging.Enabled {
		p, err := events.Dial(cfg.Messaging.URL, cfg.Messaging.Exchange, "medstock-api", logger)
		if err != nil {
			logger.Fatal("RabbitMQ接続に失敗しました", zap.Error(err))
		}
		defer p.Close()
		publisher = p
	}

	// メトリクス初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := inventory.NewMetrics(registry)

	// ステータスエンジン初期化
	engineConfig := &inventory.Config{
		NearExpiryDays:  cfg.Inventory.NearExpiryDays,
		PageSize:        cfg.Inventory.PageSize,
		PreviewSize:     cfg.Inventory.PreviewSize,
		DefaultFacility: cfg.Inventory.DefaultFacility,
	}
	engine := inventory.NewEngine(store, publisher, metrics, logger, engineConfig)

	// HTTPハンドラー設定
	handlers := NewHandlers(engine, engine.Config(), logger)
	var metricsHandler http.Handler
	if cfg.API.EnableMetrics {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	router := setupRouter(handlers, metricsHandler, cfg.API.EnableCORS)

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      router,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	go func() {
		logger.Info("在庫ステータスAPIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("storage", cfg.Storage.Driver),
			zap.Bool("messaging", cfg.Messaging.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー開始に失敗しました", zap.Error(err))
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// グレースフルシャットダウン
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
}

// openStorage opens the configured snapshot source
// 設定されたストレージを開く
func openStorage(cfg *config.Config, logger *zap.Logger) (inventory.Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("メモリストレージを使用します。再起動でデータは失われます")
		return storage.NewMemoryStorage(), nil
	default:
		pg, err := storage.NewPostgreSQLStorage(cfg.DSN(), storage.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
}

// setupRouter sets up HTTP routes. A nil metricsHandler disables /metrics.
// HTTPルートを設定
func setupRouter(handlers *Handlers, metricsHandler http.Handler, enableCORS bool) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()

	// 品目
	api.HandleFunc("/items", handlers.ListItems).Methods("GET")
	api.HandleFunc("/items", handlers.UpsertItems).Methods("PUT")
	api.HandleFunc("/items/{facility}/{itemCode}", handlers.GetItem).Methods("GET")
	api.HandleFunc("/items/{facility}/{itemCode}", handlers.DeleteItem).Methods("DELETE")

	// ダッシュボード
	api.HandleFunc("/dashboard", handlers.Dashboard).Methods("GET")

	// 移動履歴
	api.HandleFunc("/movements", handlers.RecordMovement).Methods("POST")
	api.HandleFunc("/movements/{facility}/{itemCode}", handlers.ListMovements).Methods("GET")

	// アラート
	api.HandleFunc("/alerts/scan", handlers.ScanAlerts).Methods("POST")

	// CORS設定
	if enableCORS {
		// プリフライトはどのルートにも一致しないためここで受ける
		router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		router.Use(corsMiddleware)
	}

	// ログ機能
	router.Use(loggingMiddleware(handlers.logger))

	return router
}

// corsMiddleware allows cross-origin requests from the portal front end
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
// HTTPリクエストをログ出力するミドルウェア
func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			// リクエスト処理
			next.ServeHTTP(rec, r)

			// ログ出力
			logger.Info("HTTPリクエスト",
				zap.String("method", r.Method),
				zap.String("url", r.URL.Path),
				zap.Int("status", rec.status),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
