package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), Options{Addr: srv.Addr()})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, Ping(context.Background(), client))

	srv.Close()
	require.Error(t, Ping(context.Background(), client))
}

func TestNewFailsWithoutServer(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()
	_, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}
