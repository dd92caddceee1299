package factory

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/anime-shed/capture-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/capture-inspector-go/internal/errors"
	"github.com/anime-shed/capture-inspector-go/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// HTTPStorage for HTTP-based image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// LocalStorage for local file system
	LocalStorage StorageType = "local"
)

// StorageTypeOf classifies an image reference by where its bytes live
func StorageTypeOf(ref string) (StorageType, error) {
	if filepath.IsAbs(ref) {
		return LocalStorage, nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image reference: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return HTTPStorage, nil
	case storage.BlobScheme:
		return AzureStorage, nil
	case "file":
		return LocalStorage, nil
	default:
		return "", fmt.Errorf("unsupported image reference scheme: %q", u.Scheme)
	}
}

// StorageResolver implements storage.ImageFetcher by dispatching each
// reference to the backend for its scheme
type StorageResolver struct {
	backends map[StorageType]storage.ImageFetcher
}

// NewStorageResolver creates a resolver with no backends
func NewStorageResolver() *StorageResolver {
	return &StorageResolver{backends: make(map[StorageType]storage.ImageFetcher)}
}

// Register sets the backend for a storage type
func (r *StorageResolver) Register(storageType StorageType, fetcher storage.ImageFetcher) *StorageResolver {
	if fetcher != nil {
		r.backends[storageType] = fetcher
	}
	return r
}

// Supports reports whether a backend is registered for the type
func (r *StorageResolver) Supports(storageType StorageType) bool {
	_, ok := r.backends[storageType]
	return ok
}

// Fetch resolves the backend for ref and loads its bytes
func (r *StorageResolver) Fetch(ctx context.Context, ref string) ([]byte, error) {
	storageType, err := StorageTypeOf(ref)
	if err != nil {
		return nil, apperrors.NewValidationError("Unsupported image reference", err)
	}
	backend, ok := r.backends[storageType]
	if !ok {
		return nil, apperrors.NewConfigurationError(
			fmt.Sprintf("%s storage is not configured", storageType), nil)
	}
	return backend.Fetch(ctx, ref)
}

// StorageOptions configures the default backends
type StorageOptions struct {
	MaxImageBytes  int64
	AzureAccount   string
	AzureKey       string
	AzureContainer string
	HTTPOptions    []storage.HTTPOption
}

// ComponentFactory builds the storage and analysis components
type ComponentFactory struct {
	opts StorageOptions
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(opts StorageOptions) *ComponentFactory {
	return &ComponentFactory{opts: opts}
}

// CreateStorage creates a storage implementation based on the specified type
func (f *ComponentFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		opts := append([]storage.HTTPOption{storage.WithMaxBytes(f.opts.MaxImageBytes)}, f.opts.HTTPOptions...)
		return storage.NewHTTPImageFetcher(opts...), nil
	case AzureStorage:
		return f.CreateBlobStore()
	case LocalStorage:
		return storage.NewLocalFileFetcher(f.opts.MaxImageBytes), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// CreateBlobStore creates the Azure blob store, or fails when credentials are missing
func (f *ComponentFactory) CreateBlobStore() (*storage.AzureBlobStore, error) {
	if f.opts.AzureAccount == "" || f.opts.AzureKey == "" {
		return nil, fmt.Errorf("azure storage credentials are not configured")
	}
	return storage.NewAzureBlobStore(f.opts.AzureAccount, f.opts.AzureKey, f.opts.AzureContainer)
}

// CreateResolver wires every backend that can be built. Azure is skipped,
// not fatal, when it has no credentials.
func (f *ComponentFactory) CreateResolver() (*StorageResolver, error) {
	resolver := NewStorageResolver()
	for _, storageType := range []StorageType{HTTPStorage, LocalStorage} {
		fetcher, err := f.CreateStorage(storageType)
		if err != nil {
			return nil, err
		}
		resolver.Register(storageType, fetcher)
	}
	if f.opts.AzureAccount != "" {
		blob, err := f.CreateBlobStore()
		if err != nil {
			return nil, err
		}
		resolver.Register(AzureStorage, blob)
	}
	return resolver, nil
}

// CreateExtractor creates the pixel signal extractor
func (f *ComponentFactory) CreateExtractor() analyzer.SignalExtractor {
	return analyzer.NewSignalExtractor()
}
