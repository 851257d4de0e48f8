//
// Copyright (C) 2026 The hearth authors.  All rights reserved.
//
// hearth is licensed under the Apache License Version 2.0.
//
//

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hearthd/hearth/log"
)

const (
	// maxLineBytes bounds a single JSON-RPC line from the server.
	maxLineBytes = 1 << 20

	// Teardown ladder: stdin close, then SIGTERM, then SIGKILL, with these
	// grace periods between the rungs.
	stdinCloseWait = 3 * time.Second
	termWait       = 1 * time.Second
	killWait       = 2 * time.Second
)

// callResult is what a pending request slot receives: the raw result or the
// error that completed the call.
type callResult struct {
	result json.RawMessage
	err    error
}

// transport runs one tool server as a child process and frames JSON-RPC 2.0
// messages over its stdio, one JSON object per line. A background reader
// drains stdout and routes responses to the in-flight table by id.
type transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.Reader
	stderr io.Reader

	pending   map[int64]chan callResult
	pendingMu sync.Mutex
	nextID    atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	ioDone   sync.WaitGroup
	waitDone chan struct{}
	waitErr  error

	// onNotification receives server notifications; nil means they are
	// ignored. onClosed fires when the reader loop ends for any reason.
	onNotification func(method string, params json.RawMessage)
	onClosed       func()
}

func newTransport() *transport {
	return &transport{
		pending:  make(map[int64]chan callResult),
		stop:     make(chan struct{}),
		waitDone: make(chan struct{}),
	}
}

// start spawns the server process and begins draining its pipes. The child
// runs in its own process group so teardown signals reach any helpers it
// spawned.
func (t *transport) start(interpreter, scriptPath string, env map[string]string) error {
	cmd := exec.Command(interpreter, scriptPath)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	log.Infof("mcp: started tool server %q (pid %d)", scriptPath, cmd.Process.Pid)

	t.ioDone.Add(2)
	go t.readLoop()
	go t.drainStderr()

	// Reap the child only after both pipe readers have finished, so no
	// final output is lost to Wait closing the pipes.
	go func() {
		t.ioDone.Wait()
		t.waitErr = cmd.Wait()
		close(t.waitDone)
	}()
	return nil
}

// call sends one request and blocks until its response arrives, the context
// ends, or the session closes.
func (t *transport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if t.stopped() {
		return nil, ErrSessionClosed
	}

	id := t.nextID.Add(1)
	slot := make(chan callResult, 1)
	t.pendingMu.Lock()
	t.pending[id] = slot
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	data, err := json.Marshal(request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	if err := t.writeLine(data); err != nil {
		return nil, fmt.Errorf("send %s request: %w", method, err)
	}

	select {
	case res := <-slot:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.stop:
		return nil, ErrSessionClosed
	}
}

// notify sends a notification; no response is expected.
func (t *transport) notify(method string, params any) error {
	if t.stopped() {
		return ErrSessionClosed
	}
	data, err := json.Marshal(notification{JSONRPC: jsonrpcVersion, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", method, err)
	}
	if err := t.writeLine(data); err != nil {
		return fmt.Errorf("send %s notification: %w", method, err)
	}
	return nil
}

func (t *transport) writeLine(data []byte) error {
	_, err := t.stdin.Write(append(data, '\n'))
	return err
}

// readLoop drains the server's stdout line by line until EOF, a read error,
// or stop. Whatever the cause, every pending request is completed with
// ErrSessionClosed on the way out.
func (t *transport) readLoop() {
	defer t.ioDone.Done()

	scanner := bufio.NewScanner(t.stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if t.stopped() {
			break
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		t.dispatch(line)
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("mcp: reading server stdout: %v", err)
	}

	t.failPending(ErrSessionClosed)
	if t.onClosed != nil {
		t.onClosed()
	}
}

// dispatch routes one incoming line: a response to its pending slot, a
// notification to the handler, anything else to a warning.
func (t *transport) dispatch(line []byte) {
	var msg incoming
	if err := json.Unmarshal(line, &msg); err != nil {
		log.Warnf("mcp: undecodable server message %q: %v", line, err)
		return
	}

	switch {
	case msg.ID != nil && (msg.Result != nil || msg.Error != nil):
		t.deliver(*msg.ID, &msg)
	case msg.ID == nil && msg.Method != "":
		if t.onNotification != nil {
			t.onNotification(msg.Method, msg.Params)
			return
		}
		log.Debugf("mcp: ignoring notification %s", msg.Method)
	default:
		log.Warnf("mcp: unexpected message shape from server: %s", line)
	}
}

func (t *transport) deliver(id int64, msg *incoming) {
	t.pendingMu.Lock()
	slot, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.pendingMu.Unlock()

	if !ok {
		log.Warnf("mcp: response for unknown request id %d", id)
		return
	}
	if msg.Error != nil {
		slot <- callResult{err: msg.Error}
		return
	}
	slot <- callResult{result: msg.Result}
}

// failPending completes every in-flight request with err.
func (t *transport) failPending(err error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	for id, slot := range t.pending {
		delete(t.pending, id)
		slot <- callResult{err: err}
	}
}

func (t *transport) drainStderr() {
	defer t.ioDone.Done()

	scanner := bufio.NewScanner(t.stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			log.Debugf("mcp server stderr: %s", line)
		}
	}
}

func (t *transport) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// shutdown walks the teardown ladder: close stdin and give the server a
// chance to exit on EOF, escalate to SIGTERM, then SIGKILL. Pending
// requests complete with ErrSessionClosed immediately.
func (t *transport) shutdown() {
	t.stopOnce.Do(func() { close(t.stop) })
	if t.stdin != nil {
		t.stdin.Close()
	}
	t.failPending(ErrSessionClosed)

	if t.cmd == nil || t.cmd.Process == nil {
		return
	}

	if t.waitExit(stdinCloseWait) {
		t.logExit()
		return
	}
	log.Warnf("mcp: server did not exit after stdin close, sending SIGTERM")
	terminateProcess(t.cmd)
	if t.waitExit(termWait) {
		t.logExit()
		return
	}
	log.Warnf("mcp: server ignored SIGTERM, sending SIGKILL")
	killProcess(t.cmd)
	t.waitExit(killWait)
	t.logExit()
}

// waitExit waits up to d for the child to be reaped.
func (t *transport) waitExit(d time.Duration) bool {
	select {
	case <-t.waitDone:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *transport) logExit() {
	select {
	case <-t.waitDone:
		if t.waitErr != nil {
			log.Debugf("mcp: server exit: %v", t.waitErr)
		}
	default:
		log.Warnf("mcp: server still running after teardown ladder")
	}
}
