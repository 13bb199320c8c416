package publish

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Supported destination schemes.
const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"
)

// Destination is a parsed object location.
type Destination struct {
	Scheme string
	Bucket string
	Object string
}

// String returns the destination as scheme://bucket/object.
func (d Destination) String() string {
	return fmt.Sprintf("%s://%s/%s", d.Scheme, d.Bucket, d.Object)
}

// ParseDestination parses gs://bucket/key or s3://bucket/key. When the key
// is empty or ends in "/", name is appended to it.
func ParseDestination(raw, name string) (Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Destination{}, fmt.Errorf("parse destination %q: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != SchemeGCS && scheme != SchemeS3 {
		return Destination{}, fmt.Errorf("unsupported destination scheme %q (want gs:// or s3://)", u.Scheme)
	}
	if u.Host == "" {
		return Destination{}, fmt.Errorf("destination %q has no bucket", raw)
	}

	object := strings.TrimPrefix(u.Path, "/")
	if object == "" || strings.HasSuffix(object, "/") {
		if name == "" {
			return Destination{}, fmt.Errorf("destination %q names no object", raw)
		}
		object = path.Join(object, name)
	}
	return Destination{Scheme: scheme, Bucket: u.Host, Object: object}, nil
}
