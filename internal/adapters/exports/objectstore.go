package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"agroconsole/internal/blob"
)

// ObjectStore persists export artifacts.
type ObjectStore interface {
	// Put stores a new immutable object and fails when the key exists.
	Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]any) (ExportArtifact, error)
	Get(ctx context.Context, key string) (ExportArtifact, []byte, error)
	// Delete reports whether the object existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns artifacts whose keys start with prefix.
	List(ctx context.Context, prefix string) ([]ExportArtifact, error)
}

// ErrArtifactNotFound is returned by object stores for unknown keys.
var ErrArtifactNotFound = errors.New("export artifact not found")

// BlobObjectStore adapts a blob.Store. Metadata values are stringified since
// blob metadata is string only.
type BlobObjectStore struct {
	store  blob.Store
	expiry time.Duration
}

// NewBlobObjectStore wraps store. Signed URLs, when the backend supports
// them, are valid for expiry.
func NewBlobObjectStore(store blob.Store, expiry time.Duration) *BlobObjectStore {
	return &BlobObjectStore{store: store, expiry: expiry}
}

func (s *BlobObjectStore) Put(ctx context.Context, key string, payload []byte, contentType string, metadata map[string]any) (ExportArtifact, error) {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = fmt.Sprint(v)
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: contentType, Metadata: md})
	if err != nil {
		return ExportArtifact{}, err
	}
	return s.artifact(ctx, info), nil
}

func (s *BlobObjectStore) Get(ctx context.Context, key string) (ExportArtifact, []byte, error) {
	info, rc, err := s.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return ExportArtifact{}, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
	}
	if err != nil {
		return ExportArtifact{}, nil, err
	}
	defer rc.Close()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return ExportArtifact{}, nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return s.artifact(ctx, info), payload, nil
}

func (s *BlobObjectStore) Delete(ctx context.Context, key string) (bool, error) {
	return s.store.Delete(ctx, key)
}

func (s *BlobObjectStore) List(ctx context.Context, prefix string) ([]ExportArtifact, error) {
	infos, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ExportArtifact, 0, len(infos))
	for _, info := range infos {
		out = append(out, s.artifact(ctx, info))
	}
	return out, nil
}

func (s *BlobObjectStore) artifact(ctx context.Context, info blob.Info) ExportArtifact {
	art := ExportArtifact{
		ID:          info.Key,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if len(info.Metadata) > 0 {
		art.Metadata = make(map[string]any, len(info.Metadata))
		for k, v := range info.Metadata {
			art.Metadata[k] = v
		}
	}
	if url, err := s.store.PresignURL(ctx, info.Key, blob.SignedURLOptions{Expiry: s.expiry}); err == nil {
		art.URL = url
	}
	return art
}

// MemoryObjectStore keeps artifacts in process memory.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]storedObject
}

type storedObject struct {
	artifact ExportArtifact
	payload  []byte
}

// NewMemoryObjectStore constructs an empty store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{objects: make(map[string]storedObject)}
}

func (s *MemoryObjectStore) Put(_ context.Context, key string, payload []byte, contentType string, metadata map[string]any) (ExportArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return ExportArtifact{}, fmt.Errorf("object %s already exists", key)
	}
	artifact := ExportArtifact{
		ID:          key,
		ContentType: contentType,
		SizeBytes:   int64(len(payload)),
		Metadata:    cloneMap(metadata),
		CreatedAt:   time.Now().UTC(),
	}
	s.objects[key] = storedObject{artifact: artifact, payload: bytes.Clone(payload)}
	return artifact.copy(), nil
}

func (s *MemoryObjectStore) Get(_ context.Context, key string) (ExportArtifact, []byte, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return ExportArtifact{}, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, key)
	}
	return obj.artifact.copy(), bytes.Clone(obj.payload), nil
}

func (s *MemoryObjectStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.objects[key]
	delete(s.objects, key)
	return existed, nil
}

func (s *MemoryObjectStore) List(_ context.Context, prefix string) ([]ExportArtifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ExportArtifact, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, obj.artifact.copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a ExportArtifact) copy() ExportArtifact {
	a.Metadata = cloneMap(a.Metadata)
	return a
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
