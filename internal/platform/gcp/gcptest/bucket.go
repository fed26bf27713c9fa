package gcptest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Bucket is an in-memory BucketService.
type Bucket struct {
	mu      sync.Mutex
	Name    string
	Objects map[string][]byte
}

func NewBucket() *Bucket { return &Bucket{Name: "test-bucket", Objects: map[string][]byte{}} }

func (b *Bucket) Upload(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Objects[key] = data
	return nil
}

func (b *Bucket) Download(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.Objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Bucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.Objects, key)
	return nil
}

func (b *Bucket) URI(key string) string { return "gs://" + b.Name + "/" + key }

// Keys lists stored object keys in order.
func (b *Bucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.Objects))
	for k := range b.Objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Transcriber fakes the Speech and Video clients.
type Transcriber struct {
	Text string
	Err  error
	URIs []string
}

func (t *Transcriber) TranscribeGCS(_ context.Context, uri string) (string, error) {
	t.URIs = append(t.URIs, uri)
	return t.Text, t.Err
}

func (t *Transcriber) Close() error { return nil }
