// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/pagewatch/internal/app"
	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/runlog"
	"github.com/JakeFAU/pagewatch/internal/storage"
	"github.com/JakeFAU/pagewatch/internal/storage/gcs"
	"github.com/JakeFAU/pagewatch/internal/storage/postgres"
)

// MockMirror mocks the runlog.Mirror interface.
type MockMirror struct {
	mock.Mock
}

// Record satisfies the runlog.Mirror interface for the mock.
func (m *MockMirror) Record(ctx context.Context, entry runlog.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Target: config.TargetConfig{
			URL:            "https://example.com",
			UserAgent:      config.DefaultUserAgent,
			TimeoutSeconds: 15,
		},
		Email:   config.EmailConfig{To: []string{"ops@example.com"}, Subject: "Page update for {url}"},
		SMTP:    config.SMTPConfig{Port: 587},
		Storage: config.StorageConfig{DataDir: filepath.Join(t.TempDir(), "data")},
		DB:      config.DBConfig{Table: "pagewatch_runs"},
	}
}

func TestNew_LocalOnly(t *testing.T) {
	a, err := app.New(context.Background(), testConfig(t), zap.NewNop(), app.Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Runner())
	assert.NotNil(t, a.RunLog())
	assert.NotNil(t, a.Logger())
	assert.DirExists(t, a.Config().Storage.DataDir)
}

func TestNew_InvalidDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.DataDir = ""

	_, err := app.New(context.Background(), cfg, nil, app.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init local storage")
}

func TestNew_MirrorFailuresAreNotFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.GCSBucket = "snapshots"
	cfg.DB.DSN = "postgres://localhost/pagewatch"

	core, logs := observer.New(zap.WarnLevel)
	a, err := app.New(context.Background(), cfg, zap.New(core), app.Options{
		OpenGCS: func(context.Context, gcs.Config, *zap.Logger) (storage.BlobStore, func(), error) {
			return nil, nil, errors.New("bucket not found")
		},
		OpenRunStore: func(context.Context, postgres.RunStoreConfig) (runlog.Mirror, func(), error) {
			return nil, nil, errors.New("connection refused")
		},
	})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 1, logs.FilterMessage("GCS snapshot mirror disabled").Len())
	assert.Equal(t, 1, logs.FilterMessage("Postgres run-log mirror disabled").Len())
}

func TestNew_WiresMirrorsAndClosesInReverse(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.GCSBucket = "snapshots"
	cfg.DB.DSN = "postgres://localhost/pagewatch"

	var closed []string
	blobs := &storage.MockBlobStore{}
	mirror := &MockMirror{}
	mirror.On("Record", mock.Anything, mock.MatchedBy(func(e runlog.Entry) bool {
		return e.Status == runlog.StatusOK
	})).Return(nil).Once()

	a, err := app.New(context.Background(), cfg, zap.NewNop(), app.Options{
		OpenGCS: func(_ context.Context, got gcs.Config, _ *zap.Logger) (storage.BlobStore, func(), error) {
			assert.Equal(t, "snapshots", got.Bucket)
			return blobs, func() { closed = append(closed, "gcs") }, nil
		},
		OpenRunStore: func(_ context.Context, got postgres.RunStoreConfig) (runlog.Mirror, func(), error) {
			assert.Equal(t, "pagewatch_runs", got.Table)
			return mirror, func() { closed = append(closed, "postgres") }, nil
		},
	})
	require.NoError(t, err)

	_, err = a.RunLog().AppendRun(context.Background(), runlog.Success("https://example.com", false, runlog.EmailNoChange, 3, "abc"))
	require.NoError(t, err)
	mirror.AssertExpectations(t)

	a.Close()
	a.Close()
	assert.Equal(t, []string{"postgres", "gcs"}, closed)
}
