package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y001j/uringhttp"
	"github.com/y001j/uringhttp/resource"
	socket "github.com/y001j/uringhttp/sockets"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "tcp", c.Network)
	assert.Equal(t, "127.0.0.1:7777", c.Addr)
	assert.EqualValues(t, 128, c.RingEntries)
	assert.Equal(t, 64, c.BacklogHint)
	assert.Equal(t, 20, c.AcceptCapacity)
	assert.Equal(t, 2, c.InitialAccepts)
	assert.Equal(t, 4096, c.BufferSize)
	assert.Equal(t, time.Second, c.TickInterval)
	assert.False(t, c.FixedResources)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uringhttp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: 0.0.0.0:8080
accept_capacity: 8
buffer_size: 2048
fixed_resources: true
tick_interval: 250ms
`), 0o644))
	t.Setenv("URINGHTTP_BUFFER_SIZE", "1024")
	t.Setenv("URINGHTTP_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", c.Addr)
	assert.Equal(t, 8, c.AcceptCapacity)
	assert.Equal(t, 1024, c.BufferSize, "environment wins over the file")
	assert.True(t, c.FixedResources)
	assert.Equal(t, 250*time.Millisecond, c.TickInterval)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("URINGHTTP_INITIAL_ACCEPTS", "50")
	_, err := Load("")
	assert.ErrorContains(t, err, "initial_accepts")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	bad := *c
	bad.BufferSize = 0
	assert.ErrorContains(t, bad.Validate(), "buffer_size")

	bad = *c
	bad.RingEntries = 0
	assert.ErrorContains(t, bad.Validate(), "ring_entries")

	bad = *c
	bad.HelloPath = ""
	assert.Error(t, bad.Validate())
}

func TestMappings(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	c.NoDelay = false
	c.RecvBuffer = 1 << 16

	h := &uringhttp.BuiltinEventEngine{}
	opts := c.Options(nil, h)
	assert.Equal(t, c.AcceptCapacity, opts.AcceptCapacity)
	assert.Equal(t, c.BufferSize, opts.BufferSize)
	assert.Equal(t, c.TickInterval, opts.TickInterval)
	assert.Same(t, h, opts.Handler)

	so := c.SocketOptions()
	assert.True(t, so.ReuseAddr)
	assert.Equal(t, socket.TCPDelay, so.TCPNoDelay)
	assert.Equal(t, 1<<16, so.SocketRecvBuffer)

	specs := c.Resources()
	require.Len(t, specs, 2)
	assert.Equal(t, resource.Hello, specs[0].ID)
	assert.Equal(t, c.NotFoundPath, specs[1].Path)
}
