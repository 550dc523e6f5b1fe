package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// FakeTransport is an in-process Transport used by tests for the layers
// above it (AdapterController, UdsClient, DiagnosticEngine) without a real
// serial port. Callers script a reply per expected command with On, or
// fall back to Default for anything unmatched.
type FakeTransport struct {
	replies []scriptedReply
	Default string
	Sent    []string
	closed  bool
}

type scriptedReply struct {
	match string
	reply string
	err   error
}

func NewFake() *FakeTransport {
	return &FakeTransport{Default: "OK"}
}

// On registers the reply returned the next time WriteLine+ReadUntilPrompt
// is called with exactly cmd. Matches are consumed in FIFO order per
// command so a test can script a sequence of identical commands with
// different replies.
func (f *FakeTransport) On(cmd, reply string) *FakeTransport {
	f.replies = append(f.replies, scriptedReply{match: cmd, reply: reply})
	return f
}

// OnErr registers an error to be returned instead of a reply.
func (f *FakeTransport) OnErr(cmd string, err error) *FakeTransport {
	f.replies = append(f.replies, scriptedReply{match: cmd, err: err})
	return f
}

func (f *FakeTransport) WriteLine(ctx context.Context, cmd string) error {
	if f.closed {
		return &IOError{Op: "write", Err: fmt.Errorf("closed")}
	}
	f.Sent = append(f.Sent, cmd)
	return nil
}

func (f *FakeTransport) ReadUntilPrompt(ctx context.Context, deadline time.Duration) ([]byte, error) {
	if f.closed {
		return nil, &IOError{Op: "read", Err: fmt.Errorf("closed")}
	}
	if len(f.Sent) == 0 {
		return nil, fmt.Errorf("fake transport: read with no pending write")
	}
	last := f.Sent[len(f.Sent)-1]
	for i, r := range f.replies {
		if r.match == last {
			f.replies = append(f.replies[:i], f.replies[i+1:]...)
			if r.err != nil {
				return nil, r.err
			}
			return []byte(strings.ReplaceAll(r.reply, "\n", "\r")), nil
		}
	}
	return []byte(f.Default), nil
}

func (f *FakeTransport) Close() error {
	f.closed = true
	return nil
}
