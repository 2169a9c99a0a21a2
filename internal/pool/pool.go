// Package pool forks worker processes and owns their IPC channels.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"

	constants "poolmon/config"
	"poolmon/internal/config"
	"poolmon/internal/ipc"
	"poolmon/internal/logger"
)

// Member is one running worker process
type Member struct {
	ID      int
	PID     int
	Channel *ipc.Channel

	cmd  *exec.Cmd
	done chan struct{}
}

// Options configures a pool
type Options struct {
	Size       int
	Worker     config.WorkerConfig
	Executable string   // defaults to the running binary
	Args       []string // defaults to the worker subcommand
	Env        []string // extra environment for every worker
	Stderr     io.Writer
	Log        *logger.Logger
	OnExit     func(m Member) // called after a worker exits and its channel is closed
}

// Pool keeps track of live workers
type Pool struct {
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	members  map[int]*Member
	nextID   int
	stopping bool
	wg       sync.WaitGroup
}

// New creates an empty pool
func New(opts Options) *Pool {
	log := opts.Log
	if log == nil {
		log = logger.Default()
	}
	return &Pool{opts: opts, log: log, members: make(map[int]*Member)}
}

// Start forks Size workers
func (p *Pool) Start() error {
	for i := 0; i < p.opts.Size; i++ {
		if _, err := p.Spawn(); err != nil {
			return err
		}
	}
	return nil
}

// Spawn forks one worker. Its stdin and stdout carry the IPC channel and the
// worker configuration is passed in the environment.
func (p *Pool) Spawn() (*Member, error) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil, errors.New("pool is stopping")
	}
	p.mu.Unlock()

	exe := p.opts.Executable
	if exe == "" {
		path, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to locate executable: %w", err)
		}
		exe = path
	}
	args := p.opts.Args
	if args == nil {
		args = []string{constants.WORKER_COMMAND}
	}
	encoded, err := p.opts.Worker.Encode()
	if err != nil {
		return nil, err
	}

	// Workers write replies to stdout and read requests from stdin. Plain
	// os.Pipe pairs keep Wait from closing the controller's ends.
	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create request pipe: %w", err)
	}
	repR, repW, err := os.Pipe()
	if err != nil {
		reqR.Close()
		reqW.Close()
		return nil, fmt.Errorf("failed to create reply pipe: %w", err)
	}

	cmd := exec.Command(exe, args...)
	cmd.Stdin = reqR
	cmd.Stdout = repW
	cmd.Stderr = p.opts.Stderr
	cmd.Env = append(os.Environ(), constants.ENV_WORKER_CONFIG+"="+encoded)
	cmd.Env = append(cmd.Env, p.opts.Env...)

	if err := cmd.Start(); err != nil {
		reqR.Close()
		reqW.Close()
		repR.Close()
		repW.Close()
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	reqR.Close()
	repW.Close()

	p.mu.Lock()
	p.nextID++
	m := &Member{
		ID:      p.nextID,
		PID:     cmd.Process.Pid,
		Channel: ipc.NewChannel(repR, reqW, closers{reqW, repR}),
		cmd:     cmd,
		done:    make(chan struct{}),
	}
	p.members[m.ID] = m
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		if err := m.Channel.Serve(); err != nil {
			p.log.Debug("Worker %d channel: %v", m.PID, err)
		}
	}()
	go p.watch(m)

	p.log.Debug("Started worker %d (pid %d)", m.ID, m.PID)
	return m, nil
}

func (p *Pool) watch(m *Member) {
	defer p.wg.Done()
	err := m.cmd.Wait()

	p.mu.Lock()
	delete(p.members, m.ID)
	stopping := p.stopping
	p.mu.Unlock()

	code, signal := exitStatus(m.cmd.ProcessState)
	if stopping {
		p.log.Debug("Worker %d exited: code %d, signal %s", m.PID, code, signal)
	} else {
		p.log.Warning("Worker died: %d, code %d, signal %s (%v)", m.PID, code, signal, err)
	}

	m.Channel.Close()
	close(m.done)
	if p.opts.OnExit != nil {
		p.opts.OnExit(*m)
	}
}

func exitStatus(state *os.ProcessState) (int, string) {
	if state == nil {
		return -1, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return state.ExitCode(), ""
}

// Workers returns the live members ordered by id
func (p *Pool) Workers() []Member {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Member, 0, len(p.members))
	for _, m := range p.members {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live workers
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members)
}

// Stop closes every channel, which makes workers exit, and waits for them.
// Workers still running when ctx ends are killed.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopping = true
	members := make([]*Member, 0, len(p.members))
	for _, m := range p.members {
		members = append(members, m)
	}
	p.mu.Unlock()

	for _, m := range members {
		m.Channel.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	for _, m := range members {
		select {
		case <-m.done:
		default:
			p.log.Warning("Killing worker %d", m.PID)
			m.cmd.Process.Kill()
		}
	}
	<-done
	return ctx.Err()
}

type closers []io.Closer

func (c closers) Close() error {
	var first error
	for _, cl := range c {
		if err := cl.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
