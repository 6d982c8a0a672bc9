package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/sensorguard/internal/oracle"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
)

type countingMeta struct {
	mu    sync.Mutex
	names map[string]string
	calls map[string]int
}

func (c *countingMeta) DisplayName(_ context.Context, appID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[appID]++
	if n, ok := c.names[appID]; ok {
		return n, nil
	}
	return "", oracle.ErrUnknownApp
}

func TestAppDirectoryCachesLookups(t *testing.T) {
	meta := &countingMeta{
		names: map[string]string{"com.example.maps": "Maps"},
		calls: map[string]int{},
	}
	dir := service.NewAppDirectory(meta, time.Minute, time.Second, nil)
	ctx := context.Background()

	assert.Equal(t, "Maps", dir.DisplayName(ctx, "com.example.maps"))
	assert.Equal(t, "Maps", dir.DisplayName(ctx, "com.example.maps"))
	assert.Equal(t, 1, meta.calls["com.example.maps"])

	dir.Forget("com.example.maps")
	dir.DisplayName(ctx, "com.example.maps")
	assert.Equal(t, 2, meta.calls["com.example.maps"])
}

func TestAppDirectoryFallsBackToDerivedName(t *testing.T) {
	meta := &countingMeta{names: map[string]string{}, calls: map[string]int{}}
	dir := service.NewAppDirectory(meta, time.Minute, time.Second, nil)
	ctx := context.Background()

	want := oracle.FallbackDisplayName("com.example.sideloaded")
	assert.Equal(t, want, dir.DisplayName(ctx, "com.example.sideloaded"))
	assert.Equal(t, want, dir.DisplayName(ctx, "com.example.sideloaded"))
	assert.Equal(t, 1, meta.calls["com.example.sideloaded"])

	assert.Empty(t, dir.DisplayName(ctx, "  "))
}

func TestAppDirectoryWithoutMetadata(t *testing.T) {
	dir := service.NewAppDirectory(nil, 0, 0, nil)
	assert.Equal(t, oracle.FallbackDisplayName("com.a.camera"), dir.DisplayName(context.Background(), "com.a.camera"))
}
