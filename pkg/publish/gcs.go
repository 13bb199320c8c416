package publish

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSUploader uploads to Google Cloud Storage. Credentials come from
// Application Default Credentials; STORAGE_EMULATOR_HOST is honored.
type GCSUploader struct {
	client *storage.Client
}

// NewGCSUploader creates a Cloud Storage client.
func NewGCSUploader(ctx context.Context) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSUploader{client: client}, nil
}

// Upload streams r into bucket/object. Create-only uploads use a
// DoesNotExist precondition and map its 412 response to ErrExists.
func (g *GCSUploader) Upload(ctx context.Context, bucket, object string, r io.Reader, size int64, overwrite bool) error {
	obj := g.client.Bucket(bucket).Object(object)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = ContentType
	if size > 0 && size < int64(googleapi.DefaultUploadChunkSize) {
		w.ChunkSize = 0 // single request
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return gcsError(err)
	}
	if err := w.Close(); err != nil {
		return gcsError(err)
	}
	return nil
}

// Stat reads the object's attributes.
func (g *GCSUploader) Stat(ctx context.Context, bucket, object string) (ObjectInfo, error) {
	attrs, err := g.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		return ObjectInfo{}, err
	}
	info := ObjectInfo{Size: attrs.Size}
	if len(attrs.MD5) > 0 {
		info.MD5 = attrs.MD5
	}
	return info, nil
}

// Close closes the client.
func (g *GCSUploader) Close() error {
	return g.client.Close()
}

func gcsError(err error) error {
	if code, ok := googleStatus(err); ok && code == http.StatusPreconditionFailed {
		return fmt.Errorf("%w: %v", ErrExists, err)
	}
	return err
}

func googleStatus(err error) (int, bool) {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		return gerr.Code, true
	}
	return 0, false
}
