package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/roster/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketAccounts = []byte("accounts")
	bucketMeta     = []byte("meta")
)

// Keys
const (
	keyAccountList = "list"
	keyCurrentID   = "current"
	keySavedAt     = "saved_at"
)

// AccountCache implements domain.SnapshotStore using BoltDB.
type AccountCache struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// NewAccountCache opens the snapshot cache for a gateway. Each gateway URL
// gets its own database so switching backends never mixes account lists.
func NewAccountCache(baseCacheDir, gatewayURL string) (*AccountCache, error) {
	if baseCacheDir == "" {
		// Memory-only mode (no persistence)
		return &AccountCache{cache: make(map[string][]byte)}, nil
	}

	dir := baseCacheDir
	if gatewayURL != "" {
		dir = filepath.Join(baseCacheDir, hashGatewayURL(gatewayURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "roster.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &AccountCache{db: db, cache: make(map[string][]byte)}, nil
}

func hashGatewayURL(gatewayURL string) string {
	normalized := strings.TrimRight(strings.ToLower(gatewayURL), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *AccountCache) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *AccountCache) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *AccountCache) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

// === Accounts ===

// GetAccounts returns the last saved account list
func (s *AccountCache) GetAccounts() ([]domain.Account, bool) {
	var accounts []domain.Account
	ok := s.get(bucketAccounts, keyAccountList, &accounts)
	return accounts, ok
}

// SaveAccounts replaces the saved account list
func (s *AccountCache) SaveAccounts(accounts []domain.Account) error {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	if err := s.set(bucketAccounts, keyAccountList, accounts); err != nil {
		return err
	}
	return s.set(bucketMeta, keySavedAt, time.Now().Unix())
}

// GetCurrentID returns the id of the account that was current at last save
func (s *AccountCache) GetCurrentID() (string, bool) {
	var id string
	ok := s.get(bucketMeta, keyCurrentID, &id)
	return id, ok
}

// SaveCurrentID records the current account id ("" for none)
func (s *AccountCache) SaveCurrentID(id string) error {
	return s.set(bucketMeta, keyCurrentID, id)
}

// SavedAt returns when the account list was last saved
func (s *AccountCache) SavedAt() (time.Time, bool) {
	var ts int64
	if !s.get(bucketMeta, keySavedAt, &ts) {
		return time.Time{}, false
	}
	return time.Unix(ts, 0), true
}

// InvalidateAll wipes the memory cache and every bucket
func (s *AccountCache) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketMeta} {
			b := tx.Bucket(bucket)
			if b == nil {
				continue
			}
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

var _ domain.SnapshotStore = (*AccountCache)(nil)
