//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	miniostore "github.com/pithecene-io/lineseek/lineseek/minio"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

// --- MinIO Container Setup ---

var (
	minioOnce sync.Once
	minioAddr string
	minioErr  error
)

// getMinIO returns the shared MinIO host:port, starting the container if needed.
// The container is shared across all tests for performance.
func getMinIO(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	minioOnce.Do(func() {
		minioAddr, minioErr = startMinIOContainer(context.Background())
	})

	if minioErr != nil {
		tb.Fatalf("start minio container: %v", minioErr)
	}
	return minioAddr
}

func startMinIOContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start minio container: %w", err)
	}

	// Container cleanup is handled by the testcontainers Reaper.

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve minio host: %w", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve minio port: %w", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

// --- Client Helpers ---

func newMinIOClient(tb testing.TB, addr string) *minio.Client {
	tb.Helper()
	client, err := miniostore.NewClient(miniostore.ClientConfig{
		Endpoint:        addr,
		AccessKeyID:     minioUser,
		SecretAccessKey: minioPassword,
	})
	require.NoError(tb, err, "create minio client")
	return client
}

// newBucket creates a uniquely named bucket for the calling test.
func newBucket(tb testing.TB, client *minio.Client) string {
	tb.Helper()
	name := strings.ToLower(strings.NewReplacer("/", "-", "_", "-").Replace(tb.Name()))
	bucket := fmt.Sprintf("%.40s-%d", name, time.Now().UnixNano())
	require.NoError(tb, client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}), "create bucket")
	return bucket
}
