package blob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estado-transparente/transparencia-cli/internal/fault"
)

func TestDigest(t *testing.T) {
	// sha256 of the empty string is a fixed constant.
	assert.Equal(t,
		"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil),
	)

	// Identical bytes yield identical digests; different bytes differ.
	a := Digest([]byte("entidad,anio,monto\n"))
	b := Digest([]byte("entidad,anio,monto\n"))
	c := Digest([]byte("entidad,anio,monto"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFSStore_PutGet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	s := NewFSStore(dir)
	assert.Equal(t, "fs", s.Kind())

	id := uuid.New()
	data := []byte("PARTIDA;CAPITULO\n01;02\n")

	location, err := s.Put(id, data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, id.String()+".raw"), location)

	got, err := s.Get(location)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSStore_GetMissing(t *testing.T) {
	s := NewFSStore(t.TempDir())
	_, err := s.Get(filepath.Join(t.TempDir(), "nope.raw"))
	require.Error(t, err)
	assert.Equal(t, fault.KindStorage, fault.KindOf(err))
}

func TestFSStore_PutUnwritableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}
	dir := filepath.Join(t.TempDir(), "ro")
	require.NoError(t, os.MkdirAll(dir, 0o500))

	s := NewFSStore(filepath.Join(dir, "raw"))
	_, err := s.Put(uuid.New(), []byte("x"))
	require.Error(t, err)
	assert.Equal(t, fault.KindStorage, fault.KindOf(err))
}
