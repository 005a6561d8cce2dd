// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewAppRequiresHandler(t *testing.T) {
	_, err := NewApp(Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingHandler)
}

func TestRunServesAndShutsDown(t *testing.T) {
	app, err := NewApp(Config{ListenAddr: "127.0.0.1:0", ShutdownTimeout: time.Second}, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	hook := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	app.RegisterShutdownHook("first", hook("first"))
	app.RegisterShutdownHook("second", hook("second"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	addr := <-app.Addr()
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr.String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	client.CloseIdleConnections()
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"second", "first"}, order)

	assert.ErrorIs(t, app.Run(context.Background()), ErrAlreadyStarted)
}

func TestRunReportsHookErrors(t *testing.T) {
	app, err := NewApp(Config{ListenAddr: "127.0.0.1:0"}, http.NotFoundHandler())
	require.NoError(t, err)
	app.RegisterShutdownHook("history", func(context.Context) error { return errors.New("close failed") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	<-app.Addr()
	cancel()

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: close failed")
}

func TestRunListenFailure(t *testing.T) {
	app, err := NewApp(Config{ListenAddr: "256.0.0.1:bad"}, http.NotFoundHandler())
	require.NoError(t, err)
	require.Error(t, app.Run(context.Background()))
}
