//go:build linux
// +build linux

package ring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrSkip(t *testing.T, entries uint32) *Uring {
	t.Helper()
	r, err := Setup(entries)
	if err != nil {
		t.Skipf("io_uring unavailable: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestUringNop(t *testing.T) {
	r := setupOrSkip(t, 4)

	require.True(t, r.TryPush(Nop().WithUserData(42)))
	n, err := r.SubmitAndWait(1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, uint64(42), c.UserData)
	assert.Zero(t, c.Res)

	_, ok = r.Peek()
	assert.False(t, ok)
}

func TestUringSetupRoundsEntries(t *testing.T) {
	r := setupOrSkip(t, 5)
	assert.Equal(t, uint32(8), r.sqEntries)

	big := setupOrSkip(t, 4*maxEntries)
	assert.LessOrEqual(t, big.sqEntries, uint32(maxEntries))
}

func TestUringFullSubmissionSide(t *testing.T) {
	r := setupOrSkip(t, 3)

	for i := 0; i < 4; i++ {
		require.True(t, r.TryPush(Nop()), "slot %d", i)
	}
	assert.False(t, r.TryPush(Nop()))
	assert.False(t, r.TryPushMany([]Op{Nop()}))

	_, err := r.Submit()
	require.NoError(t, err)
	assert.True(t, r.TryPushMany([]Op{Nop(), Nop()}))
}

func TestUringReadAndReadFixed(t *testing.T) {
	r := setupOrSkip(t, 8)

	path := filepath.Join(t.TempDir(), "hello.html")
	require.NoError(t, os.WriteFile(path, []byte("<h1>hi</h1>"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 64)
	require.True(t, r.TryPush(Read(int(f.Fd()), buf, 0).WithUserData(1)))
	_, err = r.SubmitAndWait(1)
	require.NoError(t, err)
	c, ok := r.Peek()
	require.True(t, ok)
	require.NoError(t, c.Err())
	assert.Equal(t, "<h1>hi</h1>", string(buf[:c.Res]))

	fixed := make([]byte, 64)
	if err := r.RegisterBuffers([][]byte{fixed}); err != nil {
		t.Skipf("buffer registration refused: %v", err)
	}
	require.NoError(t, r.RegisterFiles([]int32{int32(f.Fd())}))
	require.True(t, r.TryPush(ReadFixed(0, fixed, 0, 0).WithFixedFile(0).WithUserData(2)))
	_, err = r.SubmitAndWait(1)
	require.NoError(t, err)
	c, ok = r.Peek()
	require.True(t, ok)
	require.NoError(t, c.Err())
	assert.Equal(t, "<h1>hi</h1>", string(fixed[:c.Res]))

	require.NoError(t, r.UnregisterFiles())
	require.NoError(t, r.UnregisterBuffers())
}

func TestUringClosed(t *testing.T) {
	r := setupOrSkip(t, 2)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.False(t, r.TryPush(Nop()))
	_, err := r.Submit()
	assert.ErrorIs(t, err, ErrClosed)
}
