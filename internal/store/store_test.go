package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutGet(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ref, err := s.Put(context.Background(), "runs/abc.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "runs/abc.pdf", ref)

	data, err := s.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestLocal_Overwrite(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Put(context.Background(), "doc.txt", []byte("first"))
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "doc.txt", []byte("second"))
	require.NoError(t, err)

	data, err := s.Get(context.Background(), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestLocal_GetMissing(t *testing.T) {
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "nope.bin")
	assert.Error(t, err)
}

func TestLocal_RejectsEscapingReferences(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(filepath.Join(root, "files"))
	require.NoError(t, err)

	for _, ref := range []string{"", "../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		_, err := s.Put(context.Background(), ref, []byte("x"))
		assert.Error(t, err, "reference %q", ref)
		_, err = s.Get(context.Background(), ref)
		assert.Error(t, err, "reference %q", ref)
	}
}
