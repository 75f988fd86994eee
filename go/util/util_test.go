package util

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	testCases := []struct {
		value    float64
		places   int
		expected float64
	}{
		{1.23456, 2, 1.23},
		{1.2, 0, 1},
		{2.5, 0, 3},
		{-1.23456, 3, -1.235},
		{1.23456, -1, 1.23456},
	}
	for _, tc := range testCases {
		assert.InDelta(t, tc.expected, Round(tc.value, tc.places), 1e-9, "Round(%v, %d)", tc.value, tc.places)
	}
	assert.True(t, math.IsNaN(Round(math.NaN(), 2)))
}

func TestMD5FromReader_TeesContent(t *testing.T) {
	var buf bytes.Buffer
	hash, err := MD5FromReader(strings.NewReader("hello"), &buf)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", hash)
	assert.Equal(t, "hello", buf.String())
}

func TestWithWriteFile_Success_ReplacesContents(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(name, []byte("old"), 0644))

	require.NoError(t, WithWriteFile(name, func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	}))

	var got []byte
	require.NoError(t, WithReadFile(name, func(r io.Reader) error {
		var err error
		got, err = io.ReadAll(r)
		return err
	}))
	assert.Equal(t, "new", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWithWriteFile_WriteFails_LeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "state.json")
	require.NoError(t, os.WriteFile(name, []byte("old"), 0644))

	myErr := errors.New("boom")
	err := WithWriteFile(name, func(w io.Writer) error {
		return myErr
	})
	require.ErrorIs(t, err, myErr)

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "old", string(b))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
