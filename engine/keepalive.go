package engine

import (
	"context"
	"time"

	"github.com/haverlund/elmdiag/uds"
)

// testerPresentInterval is the keep-alive cadence. spec.md §9: the
// extended session times out after ~5s without a 3E00; 2s is
// conservative and must not be lengthened past 4s.
const testerPresentInterval = 2000 * time.Millisecond

// startKeepAlive launches the TesterPresent background task if it isn't
// already running. It contends for the same adapter gate as any other
// exchange — the unbuffered job queue in package adapter makes that
// contention automatic, nothing special is needed here.
func (e *Engine) startKeepAlive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keepaliveCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.keepaliveCancel = cancel
	e.keepaliveDone = make(chan struct{})
	client := e.client
	go e.keepaliveLoop(ctx, client, e.keepaliveDone)
}

func (e *Engine) keepaliveLoop(ctx context.Context, client *uds.Client, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(testerPresentInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.TesterPresent(ctx, defaultDeadline); err != nil {
				e.log("tester present: " + err.Error())
			}
		}
	}
}

// stopKeepAlive cancels the task and waits for it to exit. Safe to call
// when no task is running.
func (e *Engine) stopKeepAlive() {
	e.mu.Lock()
	cancel := e.keepaliveCancel
	done := e.keepaliveDone
	e.keepaliveCancel = nil
	e.keepaliveDone = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
