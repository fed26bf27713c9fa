package app

import (
	"errors"
	"testing"

	"github.com/yungbote/scoolish-backend/internal/platform/gcp"
	"github.com/yungbote/scoolish-backend/internal/platform/gcp/gcptest"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

func TestResolveBucketServiceClassifiesConfigErrors(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		bucket   string
		emulator string
		want     StorageBootstrapErrorCode
	}{
		{"invalid mode", "s3", "uploads", "", StorageBootstrapErrorInvalidMode},
		{"missing bucket", "gcs", "", "", StorageBootstrapErrorMissingBucket},
		{"missing emulator host", "gcs_emulator", "uploads", "", StorageBootstrapErrorMissingEmulatorHost},
		{"invalid emulator host", "gcs_emulator", "uploads", "fake-gcs:4443", StorageBootstrapErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OBJECT_STORAGE_MODE", tc.mode)
			t.Setenv("UPLOADS_GCS_BUCKET", tc.bucket)
			t.Setenv("STORAGE_EMULATOR_HOST", tc.emulator)

			_, err := resolveBucketService(logger.Nop())
			var got *StorageBootstrapError
			if !errors.As(err, &got) {
				t.Fatalf("expected StorageBootstrapError, got=%T (%v)", err, err)
			}
			if got.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
			}
		})
	}
}

func TestResolveBucketServiceEmulatorFallback(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("UPLOADS_GCS_BUCKET", "uploads")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	orig := newBucketServiceWithConfig
	t.Cleanup(func() { newBucketServiceWithConfig = orig })

	var captured gcp.ObjectStorageConfig
	stub := gcptest.NewBucket()
	newBucketServiceWithConfig = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		captured = cfg
		return stub, nil
	}

	got, err := resolveBucketService(logger.Nop())
	if err != nil {
		t.Fatalf("resolveBucketService: %v", err)
	}
	if got != stub {
		t.Fatalf("bucket: expected stub bucket instance")
	}
	if captured.Mode != gcp.ObjectStorageModeGCSEmulator || !captured.CompatibilityFallback {
		t.Fatalf("mode: got=%q fallback=%v", captured.Mode, captured.CompatibilityFallback)
	}
}

func TestResolveBucketServiceConnectFailure(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "gcs")
	t.Setenv("UPLOADS_GCS_BUCKET", "uploads")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	orig := newBucketServiceWithConfig
	t.Cleanup(func() { newBucketServiceWithConfig = orig })
	newBucketServiceWithConfig = func(*logger.Logger, gcp.ObjectStorageConfig) (gcp.BucketService, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := resolveBucketService(logger.Nop())
	var got *StorageBootstrapError
	if !errors.As(err, &got) || got.Code != StorageBootstrapErrorConnectFailed {
		t.Fatalf("want connect_failed, got %v", err)
	}
}
