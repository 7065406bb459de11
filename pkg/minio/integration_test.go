package minio

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"

	"github.com/Aleph-Alpha/screensim/pkg/apperr"
)

// createMinIOContainer sets up and starts a MinIO Docker container for testing
func createMinIOContainer(ctx context.Context) (testcontainers.Container, string, string, error) {
	port, err := getFreePort()
	if err != nil {
		return nil, "", "", fmt.Errorf("could not get free port: %w", err)
	}

	portStr := fmt.Sprintf("%d", port)
	portBindings := nat.PortMap{
		"9000/tcp": []nat.PortBinding{{HostPort: portStr}},
	}

	req := testcontainers.ContainerRequest{
		Image: "minio/minio:RELEASE.2024-01-16T16-07-38Z",
		Cmd:   []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ACCESS_KEY": "minio_admin",
			"MINIO_SECRET_KEY": "minio_admin",
		},
		ExposedPorts: []string{
			"9000/tcp",
		},
		HostConfigModifier: func(cfg *container.HostConfig) {
			cfg.PortBindings = portBindings
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("9000/tcp").WithStartupTimeout(20*time.Second),
			wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp").WithStartupTimeout(20*time.Second),
		),
	}

	containerInstance, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to start MinIO container: %w", err)
	}

	host, err := containerInstance.Host(ctx)
	if err != nil {
		_ = containerInstance.Terminate(ctx)
		return nil, "", "", fmt.Errorf("failed to get host: %w", err)
	}

	return containerInstance, host, portStr, nil
}

// getFreePort gets a free port from the OS
func getFreePort() (int, error) {
	addr, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = addr.Close() }()

	return addr.Addr().(*net.TCPAddr).Port, nil
}

func newTestClient(t *testing.T, ctx context.Context) *Minio {
	t.Helper()

	containerInstance, host, port, err := createMinIOContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = containerInstance.Terminate(context.Background()) })

	ctrl := gomock.NewController(t)
	mockLogger := NewMockLogger(ctrl)
	mockLogger.EXPECT().Info(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().Error(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()
	mockLogger.EXPECT().ErrorWithContext(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	cfg := Config{
		Connection: ConnectionConfig{
			Endpoint:        fmt.Sprintf("%s:%s", host, port),
			AccessKeyID:     "minio_admin",
			SecretAccessKey: "minio_admin",
			Region:          "us-east-1",
		},
	}

	var client *Minio
	app := fxtest.New(t,
		FXModule,
		fx.Provide(
			func() Config { return cfg },
			func() Logger { return mockLogger },
		),
		fx.Populate(&client),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	return client
}

func TestMinioObjectLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MinIO integration test in short mode")
	}

	ctx := context.Background()
	client := newTestClient(t, ctx)
	assert.True(t, client.Healthy())

	const bucket = "screenshots"

	require.NoError(t, client.EnsureBucket(ctx, bucket))
	require.NoError(t, client.EnsureBucket(ctx, bucket), "ensure must be idempotent")

	payload := []byte("fake image bytes")
	require.NoError(t, client.Upload(ctx, bucket, "shots/a.processed.jpg", payload, "image/jpeg"))

	got, err := client.Fetch(ctx, bucket, "shots/a.processed.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	info, err := client.Client.StatObject(ctx, bucket, "shots/a.processed.jpg", minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", info.ContentType)

	require.NoError(t, client.VerifyExists(ctx, bucket, "shots/a.processed.jpg"))

	require.NoError(t, client.Upload(ctx, bucket, "shots/empty.png", nil, "image/png"))
	require.NoError(t, client.VerifyExists(ctx, bucket, "shots/empty.png"))

	keys, err := client.ListKeys(ctx, bucket, "shots/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shots/a.processed.jpg", "shots/empty.png"}, keys)

	presigned, err := client.PresignGet(ctx, bucket, "shots/a.processed.jpg")
	require.NoError(t, err)

	resp, err := http.Get(presigned)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, payload, body)
}

func TestMinioMissingObjects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MinIO integration test in short mode")
	}

	ctx := context.Background()
	client := newTestClient(t, ctx)

	require.NoError(t, client.EnsureBucket(ctx, "screenshots"))

	err := client.VerifyExists(ctx, "screenshots", "missing.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = client.Fetch(ctx, "screenshots", "missing.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = client.Fetch(ctx, "no-such-bucket", "a.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
