package inventory

import (
	"strings"
	"time"
)

// DefaultPageSize is the fixed page size used by the inventory tables
// 一覧表示のデフォルトページサイズ
const DefaultPageSize = 10

// Filter narrows a snapshot for the table view. Text takes precedence over
// Status when both are set.
// 一覧の絞り込み条件（テキスト検索がステータスより優先）
type Filter struct {
	Text   string         `json:"text,omitempty"`   // 品目コード・品目名・カテゴリの部分一致
	Status StatusCategory `json:"status,omitempty"` // 算出ステータス
}

// Page is one window of the filtered snapshot
// 絞り込み結果の1ページ分
type Page struct {
	Items        []InventoryItem `json:"items"`
	Page         int             `json:"page"`
	PageSize     int             `json:"page_size"`
	TotalMatches int             `json:"total_matches"`
	TotalPages   int             `json:"total_pages"`
	NoResults    bool            `json:"no_results"`
}

// Query filters items and returns the requested 1-indexed page. A page
// outside [1, TotalPages] is clamped into range; an empty result is an
// empty page with NoResults set, never an error.
// 絞り込みとページングを実行
func (c Classifier) Query(items []InventoryItem, filter Filter, page, pageSize int, now time.Time) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	matches := c.filter(items, filter, now)
	total := len(matches)
	totalPages := pageCount(total, pageSize)

	result := Page{
		Items:        []InventoryItem{},
		Page:         clampPage(page, totalPages),
		PageSize:     pageSize,
		TotalMatches: total,
		TotalPages:   totalPages,
		NoResults:    total == 0,
	}
	if total == 0 {
		return result
	}

	start := (result.Page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	result.Items = append(result.Items, matches[start:end]...)

	return result
}

// Query runs a query with the default near-expiry window
func Query(items []InventoryItem, filter Filter, page, pageSize int, now time.Time) Page {
	return NewClassifier(DefaultNearExpiryDays).Query(items, filter, page, pageSize, now)
}

func (c Classifier) filter(items []InventoryItem, filter Filter, now time.Time) []InventoryItem {
	text := strings.ToLower(strings.TrimSpace(filter.Text))

	var matches []InventoryItem
	for _, item := range items {
		switch {
		case text != "":
			if !matchesText(item, text) {
				continue
			}
		case filter.Status != "":
			if c.Classify(item, now) != filter.Status {
				continue
			}
		}
		matches = append(matches, item)
	}
	return matches
}

// matchesText expects needle to be lower-cased already
func matchesText(item InventoryItem, needle string) bool {
	return strings.Contains(strings.ToLower(item.ItemCode), needle) ||
		strings.Contains(strings.ToLower(item.ItemName), needle) ||
		strings.Contains(strings.ToLower(item.Category), needle)
}

func clampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Pager tracks the current page of a table. Requests for a page outside
// [1, TotalPages] leave the current page unchanged.
// 画面のページ位置を保持
type Pager struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

// NewPager creates a pager positioned on the first page
func NewPager(totalMatches, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{
		Page:       1,
		TotalPages: pageCount(totalMatches, pageSize),
	}
}

// pageCount divides without adding pageSize-1 so a huge page size cannot overflow
func pageCount(total, pageSize int) int {
	pages := total / pageSize
	if total%pageSize != 0 {
		pages++
	}
	return pages
}

// GoTo moves to page n and reports whether the move happened
func (p *Pager) GoTo(n int) bool {
	if n < 1 || n > p.TotalPages {
		return false
	}
	p.Page = n
	return true
}

// Next moves one page forward
func (p *Pager) Next() bool { return p.GoTo(p.Page + 1) }

// Prev moves one page back
func (p *Pager) Prev() bool { return p.GoTo(p.Page - 1) }

// Window returns up to size consecutive page numbers centred on the
// current page, for rendering page links
// ページリンク表示用のページ番号を返す
func (p *Pager) Window(size int) []int {
	if size <= 0 || p.TotalPages == 0 {
		return []int{}
	}
	if size > p.TotalPages {
		size = p.TotalPages
	}

	start := p.Page - size/2
	if start < 1 {
		start = 1
	}
	if start+size-1 > p.TotalPages {
		start = p.TotalPages - size + 1
	}

	pages := make([]int, size)
	for i := range pages {
		pages[i] = start + i
	}
	return pages
}
