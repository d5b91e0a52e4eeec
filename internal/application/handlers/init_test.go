package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/raices-core/internal/domain/mocks"
	"github.com/ersonp/raices-core/internal/domain/ports"
	"github.com/ersonp/raices-core/internal/infrastructure/config"
)

func openerFor(store *mocks.PersonStore, err error) StoreOpener {
	return func(_ context.Context, _ *config.Config, _, _ string) (ports.PersonStore, error) {
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()
	store := mocks.NewPersonStore()

	handler := NewInitHandler(openerFor(store, nil))

	result, err := handler.Handle(context.Background(), tmpDir, "Familia Rojas", "paternal side")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.True(t, result.ConfigCreated)
	assert.Equal(t, "familia_rojas", result.Scope)
	assert.Equal(t, config.DriverSQLite, result.Driver)
	assert.True(t, config.Exists(tmpDir))

	trees, err := config.LoadTrees(tmpDir)
	require.NoError(t, err)
	entry, err := trees.Get("Familia Rojas")
	require.NoError(t, err)
	assert.Equal(t, "paternal side", entry.Description)
}

func TestInitHandler_Handle_SecondTreeKeepsConfig(t *testing.T) {
	tmpDir := t.TempDir()
	handler := NewInitHandler(openerFor(mocks.NewPersonStore(), nil))

	_, err := handler.Handle(context.Background(), tmpDir, "one", "")
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), tmpDir, "two", "")
	require.NoError(t, err)
	assert.False(t, result.ConfigCreated)
}

func TestInitHandler_Handle_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()
	handler := NewInitHandler(openerFor(mocks.NewPersonStore(), nil))

	_, err := handler.Handle(context.Background(), tmpDir, "rojas", "")
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), tmpDir, "rojas", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestInitHandler_Handle_EmptyName(t *testing.T) {
	handler := NewInitHandler(openerFor(mocks.NewPersonStore(), nil))

	_, err := handler.Handle(context.Background(), t.TempDir(), "  ", "")
	require.Error(t, err)
}

func TestInitHandler_Handle_OpenError(t *testing.T) {
	handler := NewInitHandler(openerFor(nil, errors.New("connection failed")))

	_, err := handler.Handle(context.Background(), t.TempDir(), "rojas", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening store")
	assert.Contains(t, err.Error(), "connection failed")
}

func TestInitHandler_Handle_SchemaError(t *testing.T) {
	tmpDir := t.TempDir()
	store := mocks.NewPersonStore()
	store.Err = errors.New("disk full")

	handler := NewInitHandler(openerFor(store, nil))

	_, err := handler.Handle(context.Background(), tmpDir, "rojas", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating schema")

	trees, err := config.LoadTrees(tmpDir)
	require.NoError(t, err)
	assert.False(t, trees.Exists("rojas"))
}
