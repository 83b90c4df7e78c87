// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRepoPath(t *testing.T) {
	dir := t.TempDir()

	abs, err := resolveRepoPath([]string{dir})
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))

	// No argument defaults to the working directory.
	cwd, err := os.Getwd()
	require.NoError(t, err)
	abs, err = resolveRepoPath(nil)
	require.NoError(t, err)
	assert.Equal(t, cwd, abs)

	_, err = resolveRepoPath([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)

	file := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err = resolveRepoPath([]string{file})
	assert.Error(t, err)
}
