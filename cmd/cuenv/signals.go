package main

import (
	"os"
	"os/signal"
	"syscall"
)

// watchSignals returns at once. When SIGINT/SIGTERM/SIGQUIT arrives it
// calls onCancel and then closes the returned channel, so a long-running
// `run` can cancel its context, which ends running child processes instead
// of leaving them orphaned.
func watchSignals(onCancel func()) <-chan struct{} {
	doneCh := make(chan struct{})
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-signalCh
		onCancel()
		close(doneCh)
	}()
	return doneCh
}
