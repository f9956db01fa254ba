package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLibrary_Attempt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "p1_1:1.png"), []byte("png bytes"), 0o644))

	lib := NewStaticLibrary(dir)
	p := testPayload() // product p1, ratio 1:1

	res, err := lib.Attempt(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), res.Data)
	assert.Equal(t, "image/png", res.MIME)

	p.ProductID = "p2"
	_, err = lib.Attempt(context.Background(), p)
	var fe *FatalError
	require.True(t, errors.As(err, &fe), "missing asset must be fatal, got %v", err)
	assert.Contains(t, fe.Reason, "no library asset")
}

func TestSnap64(t *testing.T) {
	assert.Equal(t, 64, snap64(10))
	assert.Equal(t, 1088, snap64(1080))
	assert.Equal(t, 1024, snap64(1024))
	assert.Equal(t, 1920, snap64(1920))
}
