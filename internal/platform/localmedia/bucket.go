package localmedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yungbote/speakwell-backend/internal/platform/dbctx"
	"github.com/yungbote/speakwell-backend/internal/platform/gcp"
	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// DiskBucket is a gcp.BucketService over a local directory. Demo mode and
// tests use it in place of cloud storage.
type DiskBucket struct {
	log           *logger.Logger
	root          string
	publicBaseURL string
}

var _ gcp.BucketService = (*DiskBucket)(nil)

// NewDiskBucket stores objects under root/<category>/<key>. Public URLs are
// publicBaseURL/<category>/<key>, which the router serves from the same root.
func NewDiskBucket(log *logger.Logger, root, publicBaseURL string) (*DiskBucket, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("media root directory required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &DiskBucket{
		log:           log.With("service", "DiskBucket"),
		root:          root,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

func (b *DiskBucket) Root() string { return b.root }

func (b *DiskBucket) path(category gcp.BucketCategory, key string) (string, error) {
	switch category {
	case gcp.BucketCategoryAvatar, gcp.BucketCategoryRecording, gcp.BucketCategoryShareCard:
	default:
		return "", fmt.Errorf("unknown bucket category: %s", category)
	}
	clean := filepath.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", fmt.Errorf("object key required")
	}
	return filepath.Join(b.root, string(category), clean), nil
}

func (b *DiskBucket) UploadFile(dbc dbctx.Context, category gcp.BucketCategory, key string, file io.Reader) error {
	p, err := b.path(category, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir object dir: %w", err)
	}
	tmp := p + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, file); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close object: %w", err)
	}
	return os.Rename(tmp, p)
}

func (b *DiskBucket) DeleteFile(dbc dbctx.Context, category gcp.BucketCategory, key string) error {
	p, err := b.path(category, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (b *DiskBucket) DownloadFile(ctx context.Context, category gcp.BucketCategory, key string) (io.ReadCloser, error) {
	p, err := b.path(category, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, gcp.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (b *DiskBucket) GetObjectAttrs(ctx context.Context, category gcp.BucketCategory, key string) (*gcp.ObjectAttrs, error) {
	p, err := b.path(category, key)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, gcp.ErrObjectNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return &gcp.ObjectAttrs{
		Size:        st.Size(),
		ContentType: gcp.ContentTypeForKey(key),
		Updated:     st.ModTime().UTC(),
	}, nil
}

func (b *DiskBucket) GetPublicURL(category gcp.BucketCategory, key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, category, strings.Join(segments, "/"))
}
