package token

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Slot names used in client storage.
const (
	TokenSlot   = "token"
	SessionSlot = "session"
)

// Store is client-local persistent storage made of named string slots.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Clear erases every slot.
	Clear() error
}

// MemoryStore keeps slots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slots[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = value
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = make(map[string]string)
	return nil
}

// FileStore persists slots as a YAML mapping in a single file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultStorePath returns the per-user storage file location.
func DefaultStorePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", pkgerrors.Wrap(err, "locate user config dir")
	}
	return filepath.Join(dir, "access-portal", "storage.yaml"), nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	slots, err := f.load()
	if err != nil {
		return err
	}
	slots[key] = value
	return f.save(slots)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pkgerrors.Wrap(err, "clear storage")
	}
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	slots := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return slots, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read storage")
	}
	if err := yaml.Unmarshal(data, &slots); err != nil {
		return nil, pkgerrors.Wrapf(err, "decode storage %s", f.path)
	}
	if slots == nil {
		slots = make(map[string]string)
	}
	return slots, nil
}

func (f *FileStore) save(slots map[string]string) error {
	data, err := yaml.Marshal(slots)
	if err != nil {
		return pkgerrors.Wrap(err, "encode storage")
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return pkgerrors.Wrap(err, "create storage dir")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return pkgerrors.Wrap(err, "write storage")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return pkgerrors.Wrap(err, "replace storage")
	}
	return nil
}

// Keeper stores the active token in the TokenSlot of a Store.
type Keeper struct {
	store Store
}

func NewKeeper(store Store) *Keeper {
	return &Keeper{store: store}
}

// Store returns the underlying storage.
func (k *Keeper) Store() Store { return k.store }

// Persist saves token as the active token.
func (k *Keeper) Persist(token string) error {
	return k.store.Set(TokenSlot, token)
}

// Retrieve returns the active token; ok is false when nothing (or an empty string) is stored.
func (k *Keeper) Retrieve() (token string, ok bool, err error) {
	token, ok, err = k.store.Get(TokenSlot)
	if err != nil || !ok || token == "" {
		return "", false, err
	}
	return token, true, nil
}

// Clear erases the whole store, not just the token slot.
func (k *Keeper) Clear() error {
	return k.store.Clear()
}

// AuthorizationHeaderValue builds the Authorization header. Without a stored token the
// value is "Bearer null", which servers reject as an invalid token.
func (k *Keeper) AuthorizationHeaderValue() (string, error) {
	token, ok, err := k.Retrieve()
	if err != nil {
		return "", err
	}
	if !ok {
		return "Bearer null", nil
	}
	return "Bearer " + token, nil
}
