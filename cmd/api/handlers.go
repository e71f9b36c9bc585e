package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nemonet1337/medstock/pkg/inventory"
)

// asOfLayout is the format of the as_of query parameter
const asOfLayout = "2006-01-02"

// pageLinks is the number of page links returned with a table page
const pageLinks = 5

// Handlers holds HTTP handlers for the inventory status API
// 在庫ステータスAPI用のHTTPハンドラーを保持
type Handlers struct {
	engine   inventory.StatusEngine
	validate *validator.Validate
	logger   *zap.Logger
	config   inventory.Config
	clock    func() time.Time
}

// NewHandlers creates new HTTP handlers
// 新しいHTTPハンドラーを作成
func NewHandlers(engine inventory.StatusEngine, config inventory.Config, logger *zap.Logger) *Handlers {
	if config.PreviewSize < 0 {
		config.PreviewSize = 0
	}
	return &Handlers{
		engine:   engine,
		validate: validator.New(),
		logger:   logger,
		config:   config,
		clock:    time.Now,
	}
}

// APIResponse represents standard API response format
// 標準的なAPIレスポンス形式を表現
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ItemRequest represents one record of a snapshot upload
// スナップショット取り込みの品目を表現
type ItemRequest struct {
	ItemCode     string          `json:"item_code"`
	ItemName     string          `json:"item_name"`
	Category     string          `json:"category"`
	Quantity     int64           `json:"quantity"`
	ReorderLevel int64           `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	ExpiryDate   string          `json:"expiry_date"`
	FacilityName string          `json:"facility_name"`
}

// IngestRequest represents a snapshot upload
// スナップショット取り込みリクエストを表現
type IngestRequest struct {
	Items []ItemRequest `json:"items" validate:"required,min=1"`
}

// MovementRequest represents request to record a stock movement
// 在庫移動記録リクエストを表現
type MovementRequest struct {
	ItemCode     string    `json:"item_code" validate:"required"`
	FacilityName string    `json:"facility_name"`
	Type         string    `json:"type" validate:"required"`
	Delta        int64     `json:"delta" validate:"ne=0"`
	Counterparty string    `json:"counterparty"`
	Reference    string    `json:"reference"`
	Timestamp    time.Time `json:"timestamp"`
}

// ItemPage is a table page with every item decorated
type ItemPage struct {
	Items        []inventory.ItemView `json:"items"`
	Page         int                  `json:"page"`
	PageSize     int                  `json:"page_size"`
	TotalMatches int                  `json:"total_matches"`
	TotalPages   int                  `json:"total_pages"`
	NoResults    bool                 `json:"no_results"`
	PageLinks    []int                `json:"page_links"`
}

// DashboardResponse is the dashboard payload
// ダッシュボードのレスポンス
type DashboardResponse struct {
	Facility   string                                            `json:"facility,omitempty"`
	AsOf       string                                            `json:"as_of"`
	TotalItems int                                               `json:"total_items"`
	TotalValue string                                            `json:"total_value"`
	Counts     map[inventory.StatusCategory]int                  `json:"counts"`
	Labels     map[inventory.StatusCategory]string               `json:"labels"`
	Previews   map[inventory.StatusCategory][]inventory.ItemView `json:"previews"`
}

// HealthCheck handles health check requests
// ヘルスチェックリクエストを処理
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.Warn("ヘルスチェックに失敗しました", zap.Error(err))
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.sendJSON(w, code, APIResponse{
		Success: code == http.StatusOK,
		Data: map[string]interface{}{
			"status":    status,
			"timestamp": h.clock(),
			"service":   "medstock",
		},
	})
}

// ListItems handles inventory table requests
// 在庫一覧リクエストを処理
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	now, err := h.asOf(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	filter := inventory.Filter{Text: q.Get("q")}
	if s := q.Get("status"); s != "" {
		status, err := inventory.ParseStatusCategory(s)
		if err != nil {
			h.handleError(w, err)
			return
		}
		filter.Status = status
	}

	page, err := intParam(r, "page", 1)
	if err != nil {
		h.handleError(w, err)
		return
	}
	pageSize, err := intParam(r, "page_size", h.config.PageSize)
	if err != nil {
		h.handleError(w, err)
		return
	}

	result, err := h.engine.Search(r.Context(), q.Get("facility"), filter, page, pageSize, now)
	if err != nil {
		h.handleError(w, err)
		return
	}

	pager := inventory.Pager{Page: result.Page, TotalPages: result.TotalPages}
	h.sendSuccess(w, ItemPage{
		Items:        h.describeAll(result.Items, now),
		Page:         result.Page,
		PageSize:     result.PageSize,
		TotalMatches: result.TotalMatches,
		TotalPages:   result.TotalPages,
		NoResults:    result.NoResults,
		PageLinks:    pager.Window(pageLinks),
	})
}

// GetItem handles single item requests
// 品目取得リクエストを処理
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	now, err := h.asOf(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	item, err := h.engine.GetItem(r.Context(), vars["facility"], vars["itemCode"])
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendSuccess(w, h.engine.Describe(*item, now))
}

// UpsertItems handles snapshot uploads
// スナップショット取り込みリクエストを処理
func (h *Handlers) UpsertItems(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, http.StatusBadRequest, "品目が指定されていません")
		return
	}

	items := make([]inventory.InventoryItem, 0, len(req.Items))
	for _, ir := range req.Items {
		items = append(items, h.toItem(ir))
	}

	written, err := h.engine.Ingest(r.Context(), items)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendSuccess(w, map[string]interface{}{
		"message": "スナップショット取り込みが完了しました",
		"written": written,
	})
}

// DeleteItem handles item delete requests
// 品目削除リクエストを処理
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.engine.DeleteItem(r.Context(), vars["facility"], vars["itemCode"]); err != nil {
		h.handleError(w, err)
		return
	}

	h.sendSuccess(w, map[string]string{
		"message": "品目削除が完了しました",
	})
}

// Dashboard handles dashboard requests
// ダッシュボードリクエストを処理
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	facility := r.URL.Query().Get("facility")

	now, err := h.asOf(r)
	if err != nil {
		h.handleError(w, err)
		return
	}
	preview, err := intParam(r, "preview", h.config.PreviewSize)
	if err != nil {
		h.handleError(w, err)
		return
	}

	summary, err := h.engine.Dashboard(r.Context(), facility, now)
	if err != nil {
		h.handleError(w, err)
		return
	}

	resp := DashboardResponse{
		Facility:   facility,
		AsOf:       now.Format(asOfLayout),
		TotalItems: summary.TotalItems,
		TotalValue: summary.TotalValue.StringFixed(2),
		Counts:     summary.Counts,
		Labels:     make(map[inventory.StatusCategory]string, len(inventory.StatusCategories)),
		Previews:   make(map[inventory.StatusCategory][]inventory.ItemView, len(inventory.StatusCategories)),
	}
	for _, status := range inventory.StatusCategories {
		resp.Labels[status] = status.Label()
		resp.Previews[status] = h.describeAll(summary.Preview(status, preview), now)
	}

	h.sendSuccess(w, resp)
}

// RecordMovement handles movement requests
// 在庫移動記録リクエストを処理
func (h *Handlers) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "無効なリクエスト形式です")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, http.StatusBadRequest, "品目コード・移動タイプ・数量変化は必須です")
		return
	}

	movement := &inventory.StockMovement{
		ItemCode:     req.ItemCode,
		FacilityName: req.FacilityName,
		Type:         inventory.MovementType(req.Type),
		Delta:        req.Delta,
		Counterparty: req.Counterparty,
		Reference:    req.Reference,
		Timestamp:    req.Timestamp,
	}

	ctx := inventory.WithUserID(r.Context(), userID(r))
	if err := h.engine.RecordMovement(ctx, movement); err != nil {
		h.handleError(w, err)
		return
	}

	h.sendJSON(w, http.StatusCreated, APIResponse{Success: true, Data: movement})
}

// ListMovements handles movement history requests
// 移動履歴リクエストを処理
func (h *Handlers) ListMovements(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	limit, err := intParam(r, "limit", 0)
	if err != nil {
		h.handleError(w, err)
		return
	}

	movements, err := h.engine.ListMovements(r.Context(), vars["facility"], vars["itemCode"], limit)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendSuccess(w, movements)
}

// ScanAlerts handles alert scan requests
// アラートスキャンリクエストを処理
func (h *Handlers) ScanAlerts(w http.ResponseWriter, r *http.Request) {
	now, err := h.asOf(r)
	if err != nil {
		h.handleError(w, err)
		return
	}

	result, err := h.engine.ScanAlerts(r.Context(), r.URL.Query().Get("facility"), now)
	if err != nil {
		h.handleError(w, err)
		return
	}

	h.sendSuccess(w, result)
}

// ヘルパーメソッド

// toItem converts an upload record. An expiry date that cannot be parsed
// is logged and the item is treated as having no expiry.
func (h *Handlers) toItem(ir ItemRequest) inventory.InventoryItem {
	item := inventory.InventoryItem{
		ItemCode:     ir.ItemCode,
		ItemName:     ir.ItemName,
		Category:     ir.Category,
		Quantity:     ir.Quantity,
		ReorderLevel: ir.ReorderLevel,
		UnitCost:     ir.UnitCost,
		FacilityName: ir.FacilityName,
	}

	expiry, err := inventory.ParseExpiryDate(ir.ExpiryDate)
	if err != nil {
		h.logger.Warn("有効期限を解釈できないため期限なしとして扱います",
			zap.String("item_code", ir.ItemCode),
			zap.String("expiry_date", ir.ExpiryDate),
		)
	}
	item.ExpiryDate = expiry

	return item
}

func (h *Handlers) describeAll(items []inventory.InventoryItem, now time.Time) []inventory.ItemView {
	views := make([]inventory.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, h.engine.Describe(item, now))
	}
	return views
}

// asOf returns the as_of date parameter, or the current time
func (h *Handlers) asOf(r *http.Request) (time.Time, error) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return h.clock(), nil
	}
	t, err := time.Parse(asOfLayout, s)
	if err != nil {
		return time.Time{}, inventory.NewValidationError("as_of", "日付はYYYY-MM-DD形式である必要があります", s)
	}
	return t, nil
}

func intParam(r *http.Request, name string, defaultValue int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, inventory.NewValidationError(name, "整数である必要があります", s)
	}
	return v, nil
}

func userID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return "api_user"
}

// handleError maps engine errors to HTTP status codes
// エラーをHTTPステータスに変換して送信
func (h *Handlers) handleError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("リクエスト処理に失敗しました", zap.Error(err))
	}
	h.sendError(w, code, err.Error())
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, inventory.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrDuplicateItem), errors.Is(err, inventory.ErrDuplicateMovement):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrSnapshotUnavailable):
		return http.StatusServiceUnavailable
	case inventory.IsValidationError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// sendSuccess sends a successful API response
// 成功APIレスポンスを送信
func (h *Handlers) sendSuccess(w http.ResponseWriter, data interface{}) {
	h.sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error API response
// エラーAPIレスポンスを送信
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (h *Handlers) sendJSON(w http.ResponseWriter, statusCode int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("レスポンス送信に失敗しました", zap.Error(err))
	}
}
