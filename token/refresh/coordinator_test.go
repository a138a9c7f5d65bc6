package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gradcert/console-client/credstore/storefakes"
	"github.com/gradcert/console-client/internal/backendtest"
	"github.com/gradcert/console-client/token/refresh"
	"github.com/stretchr/testify/require"
)

func TestRefreshSuccessUpdatesAccessKeepsRefresh(t *testing.T) {
	server := backendtest.New(t)
	store := storefakes.NewFakeStore()
	record := server.SeededRecord(-10 * time.Second)
	store.Set(record)

	coordinator := refresh.NewCoordinator(store, server.URL)
	require.True(t, coordinator.Refresh(context.Background()))

	got := store.Get()
	require.NotNil(t, got)
	require.NotEqual(t, record.AccessToken, got.AccessToken)
	require.Equal(t, record.RefreshToken, got.RefreshToken)
	require.Equal(t, 1, server.RefreshCalls())
}

func TestRefreshWithRotationReplacesRefreshToken(t *testing.T) {
	server := backendtest.New(t, backendtest.WithRotation())
	store := storefakes.NewFakeStore()
	record := server.SeededRecord(-10 * time.Second)
	store.Set(record)

	coordinator := refresh.NewCoordinator(store, server.URL)
	require.True(t, coordinator.Refresh(context.Background()))

	got := store.Get()
	require.NotNil(t, got)
	require.NotEqual(t, record.RefreshToken, got.RefreshToken)

	// The rotated token must be usable for the next exchange while the old
	// one is dead.
	require.True(t, coordinator.Refresh(context.Background()))
	require.Equal(t, 2, server.RefreshCalls())
}

func TestRefreshFailureClearsStore(t *testing.T) {
	server := backendtest.New(t, backendtest.WithRefreshFailure())
	store := storefakes.NewFakeStore()
	store.Set(server.SeededRecord(-10 * time.Second))

	coordinator := refresh.NewCoordinator(store, server.URL)
	require.False(t, coordinator.Refresh(context.Background()))
	require.Nil(t, store.Get())
	require.Equal(t, 1, server.RefreshCalls())
}

func TestRefreshWithoutRefreshTokenFailsFast(t *testing.T) {
	server := backendtest.New(t)
	store := storefakes.NewFakeStore()
	record := server.SeededRecord(-10 * time.Second)
	record.RefreshToken = ""
	store.Set(record)

	coordinator := refresh.NewCoordinator(store, server.URL)
	require.False(t, coordinator.Refresh(context.Background()))
	// Fail-fast: nothing reached the backend and the record is untouched.
	require.Zero(t, server.RefreshCalls())
	require.NotNil(t, store.Get())
}

func TestConcurrentRefreshesShareOneExchange(t *testing.T) {
	server := backendtest.New(t, backendtest.WithRefreshDelay(200*time.Millisecond))
	store := storefakes.NewFakeStore()
	store.Set(server.SeededRecord(-10 * time.Second))

	coordinator := refresh.NewCoordinator(store, server.URL)

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, server.RefreshCalls())
	for _, ok := range results {
		require.True(t, ok)
	}
}

func TestConcurrentRefreshFailureIsSharedToo(t *testing.T) {
	server := backendtest.New(t,
		backendtest.WithRefreshFailure(),
		backendtest.WithRefreshDelay(200*time.Millisecond))
	store := storefakes.NewFakeStore()
	store.Set(server.SeededRecord(-10 * time.Second))

	coordinator := refresh.NewCoordinator(store, server.URL)

	const callers = 4
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = coordinator.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, server.RefreshCalls())
	for _, ok := range results {
		require.False(t, ok)
	}
}

func TestRefreshAfterResetStartsNewExchange(t *testing.T) {
	server := backendtest.New(t)
	store := storefakes.NewFakeStore()
	store.Set(server.SeededRecord(-10 * time.Second))

	coordinator := refresh.NewCoordinator(store, server.URL)
	require.True(t, coordinator.Refresh(context.Background()))
	coordinator.Reset()
	require.True(t, coordinator.Refresh(context.Background()))
	require.Equal(t, 2, server.RefreshCalls())
}
