// Package publish uploads finished documents to object storage.
//
// Destinations are URLs: gs://bucket/path for Google Cloud Storage and
// s3://bucket/path for S3 and S3-compatible stores. Uploads are
// create-only by default: an existing object is never replaced unless
// overwriting is enabled. Transient failures are retried with exponential
// backoff.
package publish

import (
	"bytes"
	"context"
	"crypto/md5"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/qrsheet/pkg/cache"
	"github.com/matzehuels/qrsheet/pkg/errors"
	"github.com/matzehuels/qrsheet/pkg/observability"
)

// ErrExists is returned when a create-only upload finds the object present.
var ErrExists = stderrors.New("object already exists")

// ContentType is the MIME type of published documents.
const ContentType = "application/pdf"

// ObjectInfo describes a stored object. MD5 is nil when the backend does
// not report a plain content digest.
type ObjectInfo struct {
	Size int64
	MD5  []byte
}

// Uploader writes one object to a bucket.
type Uploader interface {
	// Upload stores r under bucket/object. When overwrite is false the
	// upload must fail with ErrExists if the object is present.
	Upload(ctx context.Context, bucket, object string, r io.Reader, size int64, overwrite bool) error
	// Stat returns the size and digest of bucket/object.
	Stat(ctx context.Context, bucket, object string) (ObjectInfo, error)
	Close() error
}

// Opener creates an Uploader on first use of a scheme.
type Opener func(ctx context.Context) (Uploader, error)

// Publisher uploads local files to parsed destinations.
type Publisher struct {
	openers   map[string]Opener
	uploaders map[string]Uploader
	overwrite bool
	logger    *log.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithOverwrite allows replacing existing objects.
func WithOverwrite(overwrite bool) Option {
	return func(p *Publisher) { p.overwrite = overwrite }
}

// WithLogger sets the logger. Default discards.
func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithOpener replaces the uploader factory for a scheme.
func WithOpener(scheme string, open Opener) Option {
	return func(p *Publisher) { p.openers[scheme] = open }
}

// WithS3Config configures the s3:// backend.
func WithS3Config(cfg S3Config) Option {
	return WithOpener(SchemeS3, func(ctx context.Context) (Uploader, error) {
		return NewS3Uploader(ctx, cfg)
	})
}

// New returns a Publisher with Google Cloud Storage and S3 backends. S3
// settings come from the environment (see S3ConfigFromEnv) unless
// WithS3Config is given.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		openers: map[string]Opener{
			SchemeGCS: func(ctx context.Context) (Uploader, error) { return NewGCSUploader(ctx) },
			SchemeS3:  func(ctx context.Context) (Uploader, error) { return NewS3Uploader(ctx, S3ConfigFromEnv()) },
		},
		uploaders: make(map[string]Uploader),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish uploads the file at localPath to dest. A dest ending in "/"
// receives the file under its base name.
func (p *Publisher) Publish(ctx context.Context, localPath, dest string) (Destination, error) {
	d, err := ParseDestination(dest, filepath.Base(localPath))
	if err != nil {
		return Destination{}, errors.Wrap(errors.ErrCodeConfig, err, "publish destination")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return d, errors.Wrap(errors.ErrCodeIO, err, "open %s", localPath)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return d, errors.Wrap(errors.ErrCodeIO, err, "stat %s", localPath)
	}

	u, err := p.uploader(ctx, d.Scheme)
	if err != nil {
		return d, errors.Wrap(errors.ErrCodePublish, err, "open %s client", d.Scheme)
	}

	start := time.Now()
	observability.Publish().OnUploadStart(ctx, d.Scheme, d.Bucket, d.Object)

	attempt := 0
	err = cache.RetryWithBackoff(ctx, func() error {
		attempt++
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		err := u.Upload(ctx, d.Bucket, d.Object, f, info.Size(), p.overwrite)
		if stderrors.Is(err, ErrExists) && attempt > 1 {
			// An earlier attempt may have landed before its response was
			// lost. Accept the object only if it matches the local file.
			same, verr := sameObject(ctx, u, d, f, info.Size())
			if verr != nil {
				return fmt.Errorf("%w (verify: %v)", err, verr)
			}
			if !same {
				return err
			}
			p.logger.Warn("object created by an earlier attempt", "dest", d, "attempt", attempt)
			return nil
		}
		if err != nil && transient(err) {
			p.logger.Warn("upload failed, retrying", "dest", d, "attempt", attempt, "err", err)
			return cache.Retryable(err)
		}
		return err
	})

	observability.Publish().OnUploadComplete(ctx, d.Scheme, d.Bucket, d.Object, info.Size(), time.Since(start), err)
	if err != nil {
		return d, errors.Wrap(errors.ErrCodePublish, err, "upload %s", d)
	}

	p.logger.Info("published", "dest", d, "bytes", info.Size())
	return d, nil
}

// Close releases every opened client.
func (p *Publisher) Close() error {
	var errs []error
	for scheme, u := range p.uploaders {
		if err := u.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scheme, err))
		}
	}
	p.uploaders = make(map[string]Uploader)
	return stderrors.Join(errs...)
}

func (p *Publisher) uploader(ctx context.Context, scheme string) (Uploader, error) {
	if u, ok := p.uploaders[scheme]; ok {
		return u, nil
	}
	open, ok := p.openers[scheme]
	if !ok {
		return nil, fmt.Errorf("no uploader for scheme %q", scheme)
	}
	u, err := open(ctx)
	if err != nil {
		return nil, err
	}
	p.uploaders[scheme] = u
	return u, nil
}

// sameObject reports whether the stored object has the local file's size
// and, when the backend reports one, its MD5.
func sameObject(ctx context.Context, u Uploader, d Destination, f io.ReadSeeker, size int64) (bool, error) {
	remote, err := u.Stat(ctx, d.Bucket, d.Object)
	if err != nil {
		return false, err
	}
	if remote.Size != size {
		return false, nil
	}
	if remote.MD5 == nil {
		return true, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, err
	}
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return bytes.Equal(h.Sum(nil), remote.MD5), nil
}

// statusCoder is implemented by HTTP-level errors of both cloud SDKs.
type statusCoder interface {
	HTTPStatusCode() int
}

// transient reports whether err is worth retrying: timeouts, throttling
// and server-side failures.
func transient(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, cache.ErrNetwork) {
		return true
	}
	if code, ok := httpStatus(err); ok {
		return code == 408 || code == 429 || code >= 500
	}
	return false
}

func httpStatus(err error) (int, bool) {
	var sc statusCoder
	if stderrors.As(err, &sc) {
		return sc.HTTPStatusCode(), true
	}
	if code, ok := googleStatus(err); ok {
		return code, true
	}
	return 0, false
}
