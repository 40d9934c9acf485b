// Package blobtest holds behaviour shared by every blob backend.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"agroconsole/internal/blob/core"

	"github.com/stretchr/testify/require"
)

// Run exercises the core.Store contract against a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) core.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("put get head", func(t *testing.T) {
		s := newStore(t)
		body := []byte("%PDF-1.3\r\n\x00binary\r\n0\r\n")
		info, err := s.Put(ctx, "reports/afp/Reporte_AFP.pdf", bytes.NewReader(body), core.PutOptions{
			ContentType: "application/pdf",
			Metadata:    map[string]string{"catalog": "afp"},
		})
		require.NoError(t, err)
		require.Equal(t, "reports/afp/Reporte_AFP.pdf", info.Key)
		require.EqualValues(t, len(body), info.Size)
		require.NotEmpty(t, info.ETag)

		got, rc, err := s.Get(ctx, "reports/afp/Reporte_AFP.pdf")
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		require.Equal(t, body, data)
		require.Equal(t, "application/pdf", got.ContentType)
		require.Equal(t, "afp", got.Metadata["catalog"])

		head, err := s.Head(ctx, "reports/afp/Reporte_AFP.pdf")
		require.NoError(t, err)
		require.Equal(t, info.ETag, head.ETag)
	})

	t.Run("create only", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "a.csv", bytes.NewReader([]byte("x")), core.PutOptions{})
		require.NoError(t, err)
		_, err = s.Put(ctx, "a.csv", bytes.NewReader([]byte("y")), core.PutOptions{})
		require.True(t, errors.Is(err, core.ErrExists), "got %v", err)
	})

	t.Run("missing", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.Get(ctx, "nope.json")
		require.ErrorIs(t, err, core.ErrNotFound)
		_, err = s.Head(ctx, "nope.json")
		require.ErrorIs(t, err, core.ErrNotFound)
		existed, err := s.Delete(ctx, "nope.json")
		require.NoError(t, err)
		require.False(t, existed)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Put(ctx, "d/x.json", bytes.NewReader([]byte("{}")), core.PutOptions{})
		require.NoError(t, err)
		existed, err := s.Delete(ctx, "d/x.json")
		require.NoError(t, err)
		require.True(t, existed)
		_, err = s.Head(ctx, "d/x.json")
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("list by prefix", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"exports/b.csv", "exports/a.csv", "other/c.csv"} {
			_, err := s.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{})
			require.NoError(t, err)
		}
		list, err := s.List(ctx, "exports/")
		require.NoError(t, err)
		keys := make([]string, 0, len(list))
		for _, info := range list {
			keys = append(keys, info.Key)
		}
		require.Equal(t, []string{"exports/a.csv", "exports/b.csv"}, keys)
	})

	t.Run("invalid keys", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"", "/abs", "../escape", "a/../../b", `a\b`} {
			_, err := s.Put(ctx, k, bytes.NewReader(nil), core.PutOptions{})
			require.ErrorIs(t, err, core.ErrInvalidKey, "key %q", k)
		}
	})
}
