package storage

import (
	"context"
	"io"
	"net/http"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/googleapi"
)

// GCS stores the document as a Google Cloud Storage object. An object only
// becomes visible once its writer is closed, which gives the atomic replace
// the store requires.
type GCS struct {
	client *gcs.Client
	bucket string
	object string
}

// NewGCS creates a client using application default credentials.
func NewGCS(ctx context.Context, bucket, object string) (*GCS, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GCS client")
	}
	return &GCS{client: client, bucket: bucket, object: object}, nil
}

func (g *GCS) String() string {
	return "gs://" + g.bucket + "/" + g.object
}

func (g *GCS) handle() *gcs.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.object)
}

func (g *GCS) Read(ctx context.Context) ([]byte, error) {
	r, err := g.handle().NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, errors.Mark(errors.Wrapf(err, "read %s", g), ErrNotExist)
		}
		return nil, classifyGCS(errors.Wrapf(err, "read %s", g))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classifyGCS(errors.Wrapf(err, "read %s", g))
	}
	return data, nil
}

func (g *GCS) Write(ctx context.Context, data []byte) error {
	w := g.handle().NewWriter(ctx)
	w.ContentType = contentType(g.object)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return classifyGCS(errors.Wrapf(err, "write %s", g))
	}
	if err := w.Close(); err != nil {
		return classifyGCS(errors.Wrapf(err, "write %s", g))
	}
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func classifyGCS(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return Transient(err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Connection resets and deadline overruns.
	return Transient(err)
}

func contentType(object string) string {
	switch {
	case strings.HasSuffix(object, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(object, ".js"):
		return "application/javascript"
	default:
		return "application/json"
	}
}
