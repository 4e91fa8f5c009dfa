package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// shutdownContext returns a context cancelled by SIGINT or SIGTERM, and a
// function naming the signal that cancelled it.
func shutdownContext(parent context.Context) (context.Context, func() string, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var (
		mu   sync.Mutex
		name = "UNKNOWN"
	)
	go func() {
		select {
		case s := <-sigCh:
			mu.Lock()
			name = signalName(s)
			mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	get := func() string {
		mu.Lock()
		defer mu.Unlock()
		return name
	}
	return ctx, get, stop
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
