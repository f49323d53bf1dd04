package postgres

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/markerpack/internal/config"
	"github.com/OCAP2/markerpack/internal/storage"
)

// Compile-time interface check
var _ storage.Store = (*Backend)(nil)

func TestNew(t *testing.T) {
	b := New(config.DBConfig{Host: "localhost"}, zerolog.Nop())
	require.NotNil(t, b)
	assert.Nil(t, b.Backend, "no connection before Init")
}

func TestClose_BeforeInit(t *testing.T) {
	b := New(config.DBConfig{}, zerolog.Nop())
	assert.NoError(t, b.Close())
}

func TestInit_Unreachable(t *testing.T) {
	b := New(config.DBConfig{
		Host: "127.0.0.1", Port: "1", Username: "u", Password: "p", Database: "d",
	}, zerolog.Nop())
	assert.Error(t, b.Init())
}
