package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/testkit"
)

// Set BF_TEST_REDIS_ADDR (e.g. 127.0.0.1:6379) to run against a live server.
func TestRedis_Conformance(t *testing.T) {
	addr := os.Getenv("BF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BF_TEST_REDIS_ADDR not set")
	}
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		t.Helper()
		s, err := New(Options{Addr: addr, Prefix: "bf-test:" + uuid.NewString() + ":"})
		require.NoError(t, err)
		require.NoError(t, s.Ping(context.Background()))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedis_RequiresAddr(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
