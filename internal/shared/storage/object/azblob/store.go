// Package azblob stores objects in an Azure Blob Storage container.
package azblob

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/jlorenzo681/documind/internal/shared/storage/object"
	"github.com/jlorenzo681/documind/internal/shared/util"
)

// Store implements ObjectStore on one blob container.
type Store struct {
	client    *azblob.Client
	container string
}

// New creates the client from a connection string. The container is created
// on first use by EnsureContainer.
func New(connectionString, container string) (*Store, error) {
	if strings.TrimSpace(container) == "" {
		return nil, fmt.Errorf("azure container is required")
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{client: client, container: container}, nil
}

// EnsureContainer creates the container if it does not exist yet.
func (s *Store) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", s.container, err)
	}
	return nil
}

// Save uploads r under the owner's namespace.
func (s *Store) Save(ctx context.Context, owner string, fileName string, r io.Reader) (string, int64, string, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", 0, "", fmt.Errorf("sanitize file name: %w", err)
	}
	key := path.Join(util.HashOwnerKey(owner), fmt.Sprintf("%s_%s", randomID(), sanitizedName))

	var sniff [512]byte
	n, readErr := io.ReadFull(r, sniff[:])
	if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
		return "", 0, "", fmt.Errorf("read sniff: %w", readErr)
	}
	mimeType := http.DetectContentType(sniff[:n])

	size, err := s.SaveWithKey(ctx, key, mimeType, io.MultiReader(bytes.NewReader(sniff[:n]), r))
	if err != nil {
		return "", 0, "", err
	}
	return key, size, mimeType, nil
}

func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := validateKey(storageKey); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, storageKey, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("download blob %s: %w", storageKey, err)
	}
	return resp.Body, nil
}

func (s *Store) SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := validateKey(storageKey); err != nil {
		return 0, err
	}
	counter := &countingReader{r: r}
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := s.client.UploadStream(ctx, s.container, storageKey, counter, opts); err != nil {
		return 0, fmt.Errorf("upload blob %s: %w", storageKey, err)
	}
	return counter.n, nil
}

// Delete removes the blob. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	if err := validateKey(storageKey); err != nil {
		return err
	}
	_, err := s.client.DeleteBlob(ctx, s.container, storageKey, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("delete blob %s: %w", storageKey, err)
	}
	return nil
}

// Ping reads the container properties.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.ServiceClient().NewContainerClient(s.container).GetProperties(ctx, nil)
	if err != nil {
		return fmt.Errorf("container %s: %w", s.container, err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid storage key")
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func randomID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

var _ object.ObjectStore = (*Store)(nil)
