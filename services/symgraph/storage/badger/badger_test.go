// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory_GetSet(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	_, ok, err := db.Get(ctx, []byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.Set(ctx, []byte("key"), []byte("value"), 0))

	val, ok, err := db.Get(ctx, []byte("key"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), val)
	assert.Equal(t, "", db.Path())
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Set(ctx, []byte("persistent-key"), []byte("persistent-value"), 0))
	require.NoError(t, db.Close())

	db2, err := Open(cfg)
	require.NoError(t, err)
	defer db2.Close()

	val, ok, err := db2.Get(ctx, []byte("persistent-key"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("persistent-value"), val)
}

func TestPrefixOperations(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	for _, k := range []string{"facts/a", "facts/b", "meta/version"} {
		require.NoError(t, db.Set(ctx, []byte(k), []byte("x"), 0))
	}

	n, err := db.CountPrefix(ctx, []byte("facts/"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.DeletePrefix(ctx, []byte("facts/")))

	n, err = db.CountPrefix(ctx, []byte("facts/"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := db.Get(ctx, []byte("meta/version"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestCancelledContext(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = db.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, db.Set(ctx, []byte("k"), []byte("v"), 0), context.Canceled)
}
