package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikanevn/bf/storage"
	"github.com/dikanevn/bf/storage/localfs"
)

func TestGetAndScan(t *testing.T) {
	dir := t.TempDir()
	s, err := localfs.New(dir)
	require.NoError(t, err)
	addr := storage.Address{9}
	owner := storage.Address{4}
	require.NoError(t, s.Allocate(context.Background(), addr, storage.Account{Owner: owner, Deposit: 5, Data: []byte{1}}))

	var out, errOut bytes.Buffer
	code := run([]string{"get", "--backend", "localfs", "--localfs-dir", dir, "--address", addr.String()}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Contains(t, out.String(), "owner="+owner.String())
	assert.Contains(t, out.String(), "deposit=5\tdata=01\t")

	out.Reset()
	code = run([]string{"scan", "--backend", "localfs", "--localfs-dir", dir}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)

	code = run([]string{"get", "--backend", "localfs", "--localfs-dir", dir, "--address", storage.Address{8}.String()}, &out, &errOut)
	assert.Equal(t, 1, code)

	code = run([]string{"get", "--backend", "localfs", "--localfs-dir", dir}, &out, &errOut)
	assert.Equal(t, 2, code)
}
