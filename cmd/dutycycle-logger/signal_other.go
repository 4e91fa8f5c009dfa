//go:build !unix

package main

// simPinSignal has no pin source off unix; only the timer wakes the board.
func simPinSignal() <-chan struct{} { return nil }
