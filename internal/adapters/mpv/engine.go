// Package mpv drives an mpv process over its JSON IPC socket.
package mpv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"torrplay.app/player/internal/adapters"
	tplog "torrplay.app/player/internal/log"
)

var (
	ErrNotRunning     = errors.New("mpv is not running")
	errConnectionLost = errors.New("mpv connection lost")
)

const (
	commandTimeout  = 5 * time.Second
	dialAttempts    = 20
	dialInterval    = 200 * time.Millisecond
	shutdownTimeout = 3 * time.Second
)

type Config struct {
	Path      string
	Socket    string
	ExtraArgs []string
}

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *process) shutdown(timeout time.Duration) {
	if p == nil {
		return
	}
	select {
	case <-p.done:
		return
	case <-time.After(timeout):
	}
	_ = p.cmd.Process.Kill()
	<-p.done
}

// Engine is an adapters.MediaEngine backed by one idle mpv instance that is
// started on first Load and reused across sessions.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
	launch func(ctx context.Context) (*process, error)
	dial   func(ctx context.Context, path string) (net.Conn, error)

	connectMu sync.Mutex
	writeMu   sync.Mutex

	mu         sync.Mutex
	conn       net.Conn
	proc       *process
	readerDone chan struct{}
	listener   adapters.EngineListener
	pending    map[int64]chan message
	nextID     int64
	closed     bool
}

func New(cfg Config) *Engine {
	if cfg.Path == "" {
		cfg.Path = "mpv"
	}
	if cfg.Socket == "" {
		cfg.Socket = DefaultSocketPath()
	}
	e := &Engine{
		cfg:     cfg,
		logger:  tplog.WithComponent("mpv"),
		dial:    dialSocket,
		pending: make(map[int64]chan message),
	}
	e.launch = e.startProcess
	return e
}

func (e *Engine) startProcess(context.Context) (*process, error) {
	cleanupSocket(e.cfg.Socket)
	args := append([]string{
		"--idle=yes",
		"--force-window=yes",
		"--no-terminal",
		"--input-ipc-server=" + e.cfg.Socket,
	}, e.cfg.ExtraArgs...)

	// The player outlives the request that started it, so no CommandContext.
	cmd := exec.Command(e.cfg.Path, args...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", e.cfg.Path, err)
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		e.logger.Debug().Err(err).Msg("mpv_exited")
		close(p.done)
	}()
	e.logger.Info().Str("socket", e.cfg.Socket).Int("pid", cmd.Process.Pid).Msg("mpv_started")
	return p, nil
}

func (e *Engine) connect(ctx context.Context) error {
	e.connectMu.Lock()
	defer e.connectMu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrNotRunning
	}
	if e.conn != nil {
		e.mu.Unlock()
		return nil
	}
	stale := e.proc
	e.proc = nil
	e.mu.Unlock()
	stale.shutdown(0)

	proc, err := e.launch(ctx)
	if err != nil {
		return err
	}
	conn, err := e.dialWithRetry(ctx)
	if err != nil {
		proc.shutdown(0)
		return err
	}

	done := make(chan struct{})
	e.mu.Lock()
	e.conn = conn
	e.proc = proc
	e.readerDone = done
	e.mu.Unlock()
	go e.readLoop(conn, done)

	for i, name := range observed {
		if _, err := e.command("observe_property", i+1, name); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) dialWithRetry(ctx context.Context) (net.Conn, error) {
	var lastErr error
	for attempt := 0; attempt < dialAttempts; attempt++ {
		conn, err := e.dial(ctx, e.cfg.Socket)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialInterval):
		}
	}
	return nil, fmt.Errorf("connect to mpv at %s: %w", e.cfg.Socket, lastErr)
}

func (e *Engine) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)
	dec := json.NewDecoder(conn)
	for {
		var msg message
		if err := dec.Decode(&msg); err != nil {
			e.connectionLost(conn, err)
			return
		}
		if msg.Event == "" {
			e.deliver(msg)
			continue
		}
		ev, ok := translate(msg)
		if !ok {
			continue
		}
		e.mu.Lock()
		l := e.listener
		e.mu.Unlock()
		if l != nil {
			l.HandleEngineEvent(ev)
		}
	}
}

func (e *Engine) deliver(msg message) {
	e.mu.Lock()
	ch, ok := e.pending[msg.RequestID]
	delete(e.pending, msg.RequestID)
	e.mu.Unlock()
	if ok {
		ch <- msg
	}
}

func (e *Engine) connectionLost(conn net.Conn, err error) {
	e.mu.Lock()
	if e.conn != conn {
		e.mu.Unlock()
		return
	}
	e.conn = nil
	for id, ch := range e.pending {
		close(ch)
		delete(e.pending, id)
	}
	l := e.listener
	e.listener = nil
	closed := e.closed
	e.mu.Unlock()
	_ = conn.Close()

	if closed {
		return
	}
	e.logger.Warn().Err(err).Msg("mpv_connection_lost")
	if l != nil {
		l.HandleEngineEvent(adapters.EngineEvent{Kind: adapters.EventError, Err: errConnectionLost})
		l.HandleEngineEvent(adapters.EngineEvent{Kind: adapters.EventFullscreen, Flag: false})
	}
}

func (e *Engine) write(conn net.Conn, cmd command) error {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(commandTimeout))
	_, err = conn.Write(append(raw, '\n'))
	return err
}

// command sends args and waits for mpv's reply.
func (e *Engine) command(args ...any) (json.RawMessage, error) {
	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return nil, ErrNotRunning
	}
	e.nextID++
	id := e.nextID
	ch := make(chan message, 1)
	e.pending[id] = ch
	e.mu.Unlock()

	name := fmt.Sprint(args[0])
	if err := e.write(conn, command{Command: args, RequestID: id}); err != nil {
		e.drop(id)
		return nil, fmt.Errorf("mpv %s: %w", name, err)
	}

	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("mpv %s: %w", name, errConnectionLost)
		}
		if msg.Error != "success" {
			return nil, &CommandError{Command: name, Reason: msg.Error}
		}
		return msg.Data, nil
	case <-timer.C:
		e.drop(id)
		return nil, fmt.Errorf("mpv %s: timed out", name)
	}
}

// notify sends args without waiting, so it is safe from event callbacks.
func (e *Engine) notify(args ...any) error {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return nil
	}
	return e.write(conn, command{Command: args})
}

func (e *Engine) drop(id int64) {
	e.mu.Lock()
	delete(e.pending, id)
	e.mu.Unlock()
}

func (e *Engine) Load(ctx context.Context, src adapters.MediaSource, autoPlay bool, listener adapters.EngineListener) error {
	if err := e.connect(ctx); err != nil {
		return err
	}
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()

	if _, err := e.command("set_property", propPause, !autoPlay); err != nil {
		return err
	}
	if src.Title != "" {
		if _, err := e.command("set_property", "force-media-title", src.Title); err != nil {
			return err
		}
	}
	// mpv probes the container itself; the resolved type is informational here.
	e.logger.Info().Str(tplog.FieldMimeType, src.MimeType).Msg("mpv_load")
	_, err := e.command("loadfile", src.URL, "replace")
	return err
}

func (e *Engine) SetPaused(paused bool) error {
	_, err := e.command("set_property", propPause, paused)
	return err
}

func (e *Engine) Seek(position time.Duration) error {
	_, err := e.command("seek", position.Seconds(), "absolute")
	return err
}

func (e *Engine) SetFullscreen(fullscreen bool) error {
	_, err := e.command("set_property", propFullscreen, fullscreen)
	return err
}

// Stop detaches the listener and unloads the file, leaving mpv idle.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.listener = nil
	e.mu.Unlock()
	return e.notify("stop")
}

// Close quits mpv and waits for the reader and process to finish.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.listener = nil
	conn := e.conn
	proc := e.proc
	done := e.readerDone
	e.mu.Unlock()

	if conn != nil {
		_ = e.notify("quit")
		_ = conn.Close()
		<-done
	}
	proc.shutdown(shutdownTimeout)
	cleanupSocket(e.cfg.Socket)
	return nil
}

var _ adapters.MediaEngine = (*Engine)(nil)
