package lake

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	now     func() time.Time

	// PutHook, when set, runs before each Put; a non-nil error fails the call.
	PutHook func(key string) error
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object), now: time.Now}
}

func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	hook := m.PutHook
	m.mu.RUnlock()
	if hook != nil {
		if err := hook(key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = &Object{
		ObjectInfo: ObjectInfo{
			Key:          key,
			Size:         int64(len(body)),
			LastModified: m.now(),
			Metadata:     maps.Clone(opts.Metadata),
		},
		Body: slices.Clone(body),
	}
	return nil
}

// SetPutHook replaces PutHook under the store's lock.
func (m *MemoryStore) SetPutHook(hook func(key string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutHook = hook
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *obj
	cp.Body = slices.Clone(obj.Body)
	cp.Metadata = maps.Clone(obj.Metadata)
	return &cp, nil
}

func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			info := obj.ObjectInfo
			info.Metadata = nil
			out = append(out, info)
		}
	}
	slices.SortFunc(out, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (m *MemoryStore) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	obj, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &obj.ObjectInfo, nil
}

// Keys returns every stored key in order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.objects))
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
