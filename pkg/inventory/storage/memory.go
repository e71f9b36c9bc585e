package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/nemonet1337/medstock/pkg/inventory"
)

// MemoryStorage keeps the snapshot and movement history in process memory.
// It returns copies so callers cannot mutate stored records.
// メモリ上で在庫を保持するStorage実装
type MemoryStorage struct {
	mu        sync.RWMutex
	items     map[inventory.ItemKey]inventory.InventoryItem
	movements []inventory.StockMovement
}

var _ inventory.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty memory storage, optionally seeded with items
// 新しいメモリストレージを作成
func NewMemoryStorage(seed ...inventory.InventoryItem) *MemoryStorage {
	s := &MemoryStorage{
		items: make(map[inventory.ItemKey]inventory.InventoryItem, len(seed)),
	}
	for _, item := range seed {
		s.items[item.Key()] = copyItem(item)
	}
	return s
}

// ListItems returns items ordered by facility then item code
func (s *MemoryStorage) ListItems(ctx context.Context, facility string) ([]inventory.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]inventory.InventoryItem, 0, len(s.items))
	for key, item := range s.items {
		if facility != "" && key.FacilityName != facility {
			continue
		}
		items = append(items, copyItem(item))
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].FacilityName != items[j].FacilityName {
			return items[i].FacilityName < items[j].FacilityName
		}
		return items[i].ItemCode < items[j].ItemCode
	})

	return items, nil
}

// GetItem returns one item
func (s *MemoryStorage) GetItem(ctx context.Context, facility, itemCode string) (*inventory.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[inventory.ItemKey{FacilityName: facility, ItemCode: itemCode}]
	if !ok {
		return nil, inventory.ErrItemNotFound
	}
	c := copyItem(item)
	return &c, nil
}

// UpsertItem inserts or replaces an item
func (s *MemoryStorage) UpsertItem(ctx context.Context, item *inventory.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.Key()] = copyItem(*item)
	return nil
}

// DeleteItem removes an item
func (s *MemoryStorage) DeleteItem(ctx context.Context, facility, itemCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := inventory.ItemKey{FacilityName: facility, ItemCode: itemCode}
	if _, ok := s.items[key]; !ok {
		return inventory.ErrItemNotFound
	}
	delete(s.items, key)
	return nil
}

// CreateMovement appends a movement
func (s *MemoryStorage) CreateMovement(ctx context.Context, movement *inventory.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.movements {
		if m.ID == movement.ID {
			return inventory.ErrDuplicateMovement
		}
	}
	s.movements = append(s.movements, *movement)
	return nil
}

// ListMovements returns an item's movements, newest first
func (s *MemoryStorage) ListMovements(ctx context.Context, facility, itemCode string, limit int) ([]inventory.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := []inventory.StockMovement{}
	for _, m := range s.movements {
		if m.FacilityName == facility && m.ItemCode == itemCode {
			movements = append(movements, m)
		}
	}

	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Timestamp.After(movements[j].Timestamp)
	})
	if limit > 0 && len(movements) > limit {
		movements = movements[:limit]
	}

	return movements, nil
}

// Ping always succeeds
func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *MemoryStorage) Close() error {
	return nil
}

func copyItem(item inventory.InventoryItem) inventory.InventoryItem {
	if item.ExpiryDate != nil {
		expiry := *item.ExpiryDate
		item.ExpiryDate = &expiry
	}
	return item
}
