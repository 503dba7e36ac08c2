package localcart

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/foliodesk/internal/logger"
	"github.com/foliodesk/internal/models"

	"github.com/google/uuid"
)

const defaultBackupMaxBytes = 64 * 1024

// AddItemInput 添加本地购物车项输入
type AddItemInput struct {
	ProductRef    string
	Quantity      int
	BillingPeriod string
	ItemType      string
	PlanCategory  string
	Snapshot      models.ItemSnapshot
}

// Store 设备级本地购物车存储
// 每个设备一份主文件和一份受大小限制的备份文件，主文件损坏时从备份自愈。
// 存储不可用时静默降级为进程内存储，调用方可通过 Degraded 查询。
type Store struct {
	dir            string
	backupMaxBytes int64

	mu       sync.Mutex
	degraded bool
	memory   map[string]*models.Cart
}

// NewStore 创建本地购物车存储
func NewStore(dir string, backupMaxBytes int64) *Store {
	if backupMaxBytes <= 0 {
		backupMaxBytes = defaultBackupMaxBytes
	}
	s := &Store{
		dir:            strings.TrimSpace(dir),
		backupMaxBytes: backupMaxBytes,
		memory:         make(map[string]*models.Cart),
	}
	if s.dir == "" {
		s.degraded = true
		return s
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		logger.Warnw("localcart_dir_unavailable", "dir", s.dir, "error", err)
		s.degraded = true
	}
	return s
}

// Degraded 判断存储是否已降级为内存模式
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Read 读取设备购物车
// 主文件损坏时尝试备份，备份也不可用时重置为空购物车，永不向调用方报错
func (s *Store) Read(deviceID string) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(deviceID)
}

// AddItem 添加或叠加购物车项，返回更新后的快照
func (s *Store) AddItem(deviceID string, input AddItemInput) *models.Cart {
	if strings.TrimSpace(input.ProductRef) == "" || input.Quantity <= 0 {
		return s.Read(deviceID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.readLocked(deviceID)
	cart.UpsertItem(models.CartItem{
		ItemID:        uuid.NewString(),
		ProductRef:    strings.TrimSpace(input.ProductRef),
		ItemType:      input.ItemType,
		Quantity:      input.Quantity,
		BillingPeriod: input.BillingPeriod,
		PlanCategory:  input.PlanCategory,
		Snapshot:      input.Snapshot,
		AddedAt:       time.Now(),
	})
	s.persistLocked(deviceID, cart)
	return cart
}

// RemoveItem 删除引用匹配的购物车项，不存在时为空操作
func (s *Store) RemoveItem(deviceID, productRef string) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.readLocked(deviceID)
	if cart.RemoveItem(productRef) {
		s.persistLocked(deviceID, cart)
	}
	return cart
}

// SetQuantity 覆盖购物车项数量，小于等于 0 时等价于删除
func (s *Store) SetQuantity(deviceID, productRef string, quantity int) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart := s.readLocked(deviceID)
	cart.SetQuantity(productRef, quantity)
	s.persistLocked(deviceID, cart)
	return cart
}

// Clear 清空购物车及其备份
func (s *Store) Clear(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.memory, deviceID)
	if s.degraded {
		return
	}
	_ = os.Remove(s.primaryPath(deviceID))
	_ = os.Remove(s.backupPath(deviceID))
}

func (s *Store) readLocked(deviceID string) *models.Cart {
	if s.degraded {
		if cart, ok := s.memory[deviceID]; ok {
			return cloneCart(cart)
		}
		return emptyCart()
	}

	if cart, ok := s.readFile(s.primaryPath(deviceID)); ok {
		return cart
	}
	if cart, ok := s.readFile(s.backupPath(deviceID)); ok {
		logger.Warnw("localcart_recovered_from_backup", "device", deviceID)
		s.persistLocked(deviceID, cart)
		return cart
	}
	return emptyCart()
}

func (s *Store) readFile(path string) (*models.Cart, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, false
	}
	if !cart.Normalize() {
		return nil, false
	}
	return &cart, true
}

// persistLocked 持久化主文件，并在大小允许时同步备份
// 写失败时降级为内存模式，本次变更仍对调用方生效
func (s *Store) persistLocked(deviceID string, cart *models.Cart) {
	if s.degraded {
		s.memory[deviceID] = cloneCart(cart)
		return
	}

	payload, err := json.Marshal(cart)
	if err != nil {
		logger.Errorw("localcart_marshal_failed", "device", deviceID, "error", err)
		return
	}
	if err := os.WriteFile(s.primaryPath(deviceID), payload, 0o644); err != nil {
		logger.Warnw("localcart_degraded_to_memory", "device", deviceID, "error", err)
		s.degraded = true
		s.memory[deviceID] = cloneCart(cart)
		return
	}
	if int64(len(payload)) <= s.backupMaxBytes {
		if err := os.WriteFile(s.backupPath(deviceID), payload, 0o644); err != nil {
			logger.Warnw("localcart_backup_write_failed", "device", deviceID, "error", err)
		}
	}
}

func (s *Store) primaryPath(deviceID string) string {
	return filepath.Join(s.dir, sanitizeDeviceID(deviceID)+".json")
}

func (s *Store) backupPath(deviceID string) string {
	return filepath.Join(s.dir, sanitizeDeviceID(deviceID)+".bak.json")
}

func sanitizeDeviceID(deviceID string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, deviceID)
	if cleaned == "" {
		return "device"
	}
	return cleaned
}

func emptyCart() *models.Cart {
	return &models.Cart{Items: []models.CartItem{}}
}

func cloneCart(cart *models.Cart) *models.Cart {
	if cart == nil {
		return emptyCart()
	}
	return cart.Clone()
}
