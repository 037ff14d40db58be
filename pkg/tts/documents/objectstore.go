package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dgnsrekt/ttsbridge/internal/textutil"
	"github.com/dgnsrekt/ttsbridge/pkg/tts"
)

// Scheme is the locator scheme served by ObjectStoreProvider.
const Scheme = "nats"

// ErrNoLocalDir is returned when an object store locator is used as an
// output directory.
var ErrNoLocalDir = errors.New("documents: object store has no local directory")

// ObjectStoreProvider reads documents from JetStream object stores using
// locators of the form nats://bucket/key.
type ObjectStoreProvider struct {
	js nats.JetStreamContext
}

// NewObjectStoreProvider uses js to bind to buckets on demand.
func NewObjectStoreProvider(js nats.JetStreamContext) *ObjectStoreProvider {
	return &ObjectStoreProvider{js: js}
}

// ReadText downloads the object behind locator.
func (p *ObjectStoreProvider) ReadText(_ context.Context, locator string) (string, error) {
	bucket, key, err := ParseObjectLocator(locator)
	if err != nil {
		return "", err
	}
	store, err := p.js.ObjectStore(bucket)
	if err != nil {
		return "", fmt.Errorf("failed to bind to object store bucket '%s': %w", bucket, err)
	}
	data, err := store.GetBytes(key)
	if err != nil {
		return "", fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, bucket, err)
	}
	if textutil.IsMarkdown(key) {
		return textutil.StripMarkdown(data), nil
	}
	return string(data), nil
}

// ResolveOutputDir always fails: synthesized files are written locally
// and uploaded with Upload.
func (p *ObjectStoreProvider) ResolveOutputDir(_ context.Context, locator string) (string, error) {
	return "", fmt.Errorf("%s: %w", locator, ErrNoLocalDir)
}

// Upload stores r under locator, creating the bucket if needed.
func (p *ObjectStoreProvider) Upload(_ context.Context, locator string, r io.Reader) error {
	bucket, key, err := ParseObjectLocator(locator)
	if err != nil {
		return err
	}
	store, err := EnsureBucket(p.js, bucket)
	if err != nil {
		return err
	}
	if _, err := store.Put(&nats.ObjectMeta{Name: key}, r); err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, bucket, err)
	}
	return nil
}

// UploadBytes stores data under locator.
func (p *ObjectStoreProvider) UploadBytes(ctx context.Context, locator string, data []byte) error {
	return p.Upload(ctx, locator, bytes.NewReader(data))
}

// EnsureBucket creates bucket, or binds to it when it already exists.
func EnsureBucket(js nats.JetStreamContext, bucket string) (nats.ObjectStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Documents for the %s bucket.", bucket),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err == nil {
		return store, nil
	}
	if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
	}
	store, err = js.ObjectStore(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucket, err)
	}
	return store, nil
}

// ParseObjectLocator splits nats://bucket/key.
func ParseObjectLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("invalid object locator %q: %w", locator, err)
	}
	if u.Scheme != Scheme {
		return "", "", fmt.Errorf("object locator %q: scheme must be %s", locator, Scheme)
	}
	key = strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("object locator %q: want nats://bucket/key", locator)
	}
	return u.Host, key, nil
}

var _ tts.DocumentProvider = (*ObjectStoreProvider)(nil)
