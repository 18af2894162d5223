package blob

import (
	"context"
	"errors"
	"sync"
)

var errNoSuchKey = errors.New("no such key")

type object struct {
	data        []byte
	contentType string
}

// Memory is an in-process Store used by tests and the "memory" backend.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]object)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("put", key, err)
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = object{data: cp, contentType: contentType}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get", key, err)
	}
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, storageErr("get", key, errNoSuchKey)
	}
	cp := make([]byte, len(obj.data))
	copy(cp, obj.data)
	return cp, nil
}

func (m *Memory) Download(ctx context.Context, key, localPath string) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := writeLocal(localPath, data); err != nil {
		return storageErr("download", key, err)
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// ContentType returns the content type an object was stored with.
func (m *Memory) ContentType(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	return obj.contentType, ok
}

// Len is the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
