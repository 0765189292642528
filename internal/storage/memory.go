package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryStore keeps blobs in process memory. It backs STORAGE_DRIVER=memory
// and tests; SetPutErr and SetDeleteErr inject failures.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string]memoryObject
	putErr    error
	deleteErr error
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, objectPath string, reader io.Reader, _ int64, contentType string) (*Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	putErr := m.putErr
	m.mu.Unlock()
	if putErr != nil {
		return nil, putErr
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.objects[objectPath] = memoryObject{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()

	return blobFor("memory://"+objectPath, objectPath), nil
}

func (m *MemoryStore) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, objectPath)
	return nil
}

func (m *MemoryStore) EnsureBucket(context.Context) error {
	return nil
}

func (m *MemoryStore) SetPutErr(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

func (m *MemoryStore) SetDeleteErr(err error) {
	m.mu.Lock()
	m.deleteErr = err
	m.mu.Unlock()
}

func (m *MemoryStore) Has(objectPath string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[objectPath]
	return ok
}

func (m *MemoryStore) Get(objectPath string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[objectPath]
	return obj.data, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
