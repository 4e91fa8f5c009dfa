//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// simPinSignal turns SIGUSR1 into simulated wake-pin presses.
func simPinSignal() <-chan struct{} {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	out := make(chan struct{}, 1)
	go func() {
		for range sigCh {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
