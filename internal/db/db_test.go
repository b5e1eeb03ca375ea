package db

import (
	"context"
	"testing"

	"swiftx/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenMemory(t *testing.T) {
	st, err := Open(context.Background(), "memory", "", zap.NewNop())
	require.NoError(t, err)
	defer st.Close()
	assert.IsType(t, &memstore.Store{}, st)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "sqlite", "", zap.NewNop())
	assert.Error(t, err)
}
