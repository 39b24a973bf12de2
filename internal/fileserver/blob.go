package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/thand-io/azurerm/internal/azure"
	"github.com/thand-io/azurerm/internal/common"
	"github.com/thand-io/azurerm/internal/models"
)

// BlobInfo describes one blob of a container.
type BlobInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
	ContentMD5   []byte
}

// BlobStore is the part of a blob container the backend reads.
type BlobStore interface {
	List(ctx context.Context) ([]BlobInfo, error)
	Properties(ctx context.Context, name string) (BlobInfo, error)
	// Read returns up to count bytes of name starting at offset.
	Read(ctx context.Context, name string, offset, count int64) (io.ReadCloser, error)
	// URL locates the container, for logging and found paths.
	URL() string
}

// StoreFactory opens the store of one configured container.
type StoreFactory func(cfg models.FileserverContainer, env *azure.Environment) (BlobStore, error)

type blobContainer struct {
	client *container.Client
}

// accountURL returns the blob endpoint of an account. An endpoint_suffix
// that is a URL replaces the endpoint, e.g. for a local emulator.
func accountURL(cfg models.FileserverContainer, env *azure.Environment) string {
	suffix := cfg.EndpointSuffix
	if strings.HasPrefix(suffix, "http://") || strings.HasPrefix(suffix, "https://") {
		return strings.TrimSuffix(suffix, "/")
	}
	if len(suffix) == 0 {
		suffix = env.StorageEndpointSuffix
	}
	return fmt.Sprintf("https://%s.blob.%s", cfg.AccountName, suffix)
}

// NewBlobStore opens a container with its account key, its SAS token, the
// ambient Azure identity or anonymously, in that order.
func NewBlobStore(cfg models.FileserverContainer, env *azure.Environment) (BlobStore, error) {
	if env == nil {
		env = azure.PublicCloud()
	}
	containerURL := accountURL(cfg, env) + "/" + url.PathEscape(cfg.ContainerName)

	options := &container.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: env.Cloud,
			Telemetry: policy.TelemetryOptions{
				ApplicationID: common.UserAgent(),
			},
		},
	}
	if len(cfg.ProxyURL) > 0 {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy_url for container %s: %w", cfg.ContainerName, err)
		}
		options.Transport = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxy)}}
	}

	var (
		client *container.Client
		err    error
	)
	switch {
	case len(cfg.AccountKey) > 0:
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("invalid account_key for %s: %w", cfg.AccountName, credErr)
		}
		client, err = container.NewClientWithSharedKeyCredential(containerURL, cred, options)
	case len(cfg.SASToken) > 0:
		client, err = container.NewClientWithNoCredential(containerURL+"?"+strings.TrimPrefix(cfg.SASToken, "?"), options)
	case cfg.UseIdentity:
		cred, credErr := azure.NewCredential(&models.BasicConfig{}, env)
		if credErr != nil {
			return nil, credErr
		}
		client, err = container.NewClient(containerURL, cred.Token, options)
	default:
		client, err = container.NewClientWithNoCredential(containerURL, options)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create container client for %s: %w", containerURL, err)
	}
	return &blobContainer{client: client}, nil
}

func (c *blobContainer) URL() string {
	return c.client.URL()
}

func (c *blobContainer) List(ctx context.Context) ([]BlobInfo, error) {
	var blobs []BlobInfo
	pager := c.client.NewListBlobsFlatPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs of %s: %w", c.URL(), err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			info := BlobInfo{Name: *item.Name}
			if props := item.Properties; props != nil {
				if props.ContentLength != nil {
					info.Size = *props.ContentLength
				}
				if props.LastModified != nil {
					info.LastModified = *props.LastModified
				}
				info.ContentMD5 = props.ContentMD5
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}

func (c *blobContainer) Properties(ctx context.Context, name string) (BlobInfo, error) {
	resp, err := c.client.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return BlobInfo{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return BlobInfo{}, err
	}
	info := BlobInfo{Name: name, ContentMD5: resp.ContentMD5}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

func (c *blobContainer) Read(ctx context.Context, name string, offset, count int64) (io.ReadCloser, error) {
	resp, err := c.client.NewBlobClient(name).DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: count},
	})
	if err != nil {
		if bloberror.HasCode(err, bloberror.InvalidRange) {
			return io.NopCloser(strings.NewReader("")), nil
		}
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	if resp.Body == nil {
		return nil, errors.New("empty download response")
	}
	return resp.Body, nil
}
