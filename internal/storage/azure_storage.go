package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobScheme is the reference scheme for captures kept in Azure Blob Storage
const BlobScheme = "azblob"

// AzureBlobStore fetches and uploads captures in Azure Blob Storage.
// References look like azblob://<container>/<blob path>.
type AzureBlobStore struct {
	client    *azblob.Client
	container string
	maxBytes  int64
}

// NewAzureBlobStore creates a blob store using a shared key credential.
// container is where uploads go.
func NewAzureBlobStore(accountName, accountKey, container string) (*AzureBlobStore, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}

	return &AzureBlobStore{client: client, container: container, maxBytes: DefaultMaxImageBytes}, nil
}

// Fetch downloads the referenced blob
func (s *AzureBlobStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	container, blob, err := ParseBlobRef(ref)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%s: %w", ref, ErrImageNotFound)
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return nil, fmt.Errorf("download failed: status %d: %w", respErr.StatusCode, err)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	return readLimited(resp.Body, s.maxBytes)
}

// Upload stores data under name in the configured container
func (s *AzureBlobStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return "", fmt.Errorf("blob name is required")
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, name, data, nil); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return BlobRef(s.container, name), nil
}

// BlobRef builds an azblob reference
func BlobRef(container, blob string) string {
	return fmt.Sprintf("%s://%s/%s", BlobScheme, container, blob)
}

// ParseBlobRef splits an azblob reference into container and blob name
func ParseBlobRef(ref string) (container, blob string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob reference: %w", err)
	}
	if u.Scheme != BlobScheme {
		return "", "", fmt.Errorf("not a blob reference: %q", ref)
	}
	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob reference must name a container and a blob: %q", ref)
	}
	return container, blob, nil
}
