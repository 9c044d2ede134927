package replica

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/taskdb/internal/replica/store"
	"github.com/steveyegge/taskdb/internal/task"
)

// startupTimeout bounds how long the factory waits for the worker's
// startup handshake.
const startupTimeout = 5 * time.Second

type reqKind int

const (
	reqCommit reqKind = iota
	reqOpen
	reqRead
	reqClose
)

type request struct {
	kind  reqKind
	ops   []Operation
	path  string
	id    uuid.UUID
	reply chan response
}

type response struct {
	task *task.Task
	err  error
}

// Actor implements ReplicaWrapper by owning the embedded store handle
// exclusively on one worker goroutine. The handle is never touched by
// any other goroutine; all interaction flows through the request channel
// and per-request reply channels, which serializes every command. The
// Actor value itself is cheap to share across goroutines — it holds only
// the channels.
type Actor struct {
	requests  chan request
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	logger    *log.Logger
}

var _ ReplicaWrapper = (*Actor)(nil)

// OpenEmbeddedReplica is the sole construction entry point for the real
// embedded-store wrapper. It spawns the worker, which opens the store at
// path (creating it if missing), and blocks until the worker's startup
// handshake arrives or the timeout elapses. On timeout the worker is
// shut down in the background if it ever does finish starting.
func OpenEmbeddedReplica(path string) (ReplicaWrapper, error) {
	a := &Actor{
		requests: make(chan request),
		done:     make(chan struct{}),
		logger:   log.New(os.Stderr, "[replica] ", log.LstdFlags),
	}
	ready := make(chan error, 1)
	go a.run(path, ready)

	select {
	case err := <-ready:
		if err != nil {
			return nil, fmt.Errorf("open replica at %s: %w", path, err)
		}
		return a, nil
	case <-time.After(startupTimeout):
		go func() {
			if err := <-ready; err == nil {
				_ = a.Close()
			}
		}()
		return nil, fmt.Errorf("open replica at %s: %w", path, ErrStartupTimeout)
	}
}

// run is the worker loop. It opens the store, reports the handshake,
// then serves one request at a time until a close request arrives. Every
// received request gets exactly one reply. The done channel closes when
// the loop exits, which is what turns every later caller away with
// ErrReplicaClosed.
func (a *Actor) run(path string, ready chan<- error) {
	defer close(a.done)

	st, err := store.Open(path)
	ready <- err
	if err != nil {
		return
	}
	a.logger.Printf("worker started: %s", path)

	for req := range a.requests {
		switch req.kind {
		case reqCommit:
			req.reply <- response{err: a.handleCommit(st, req.ops)}

		case reqOpen:
			st, err = a.handleOpen(st, req.path)
			req.reply <- response{err: err}

		case reqRead:
			t, err := a.handleRead(st, req.id)
			req.reply <- response{task: t, err: err}

		case reqClose:
			var closeErr error
			if st != nil {
				closeErr = st.Close()
			}
			a.logger.Printf("worker stopped: %s", path)
			req.reply <- response{err: closeErr}
			return
		}
	}
}

func (a *Actor) handleCommit(st *store.Store, ops []Operation) error {
	if st == nil {
		return errors.New("store not open")
	}
	if len(ops) == 0 {
		return nil
	}
	return applyBatch(st, ops)
}

// handleOpen replaces the current handle with one opened at path. The
// old handle is closed first so the worker never holds two live handles;
// if the new open fails the worker is left without a store but keeps
// looping, and later commands report the missing handle.
func (a *Actor) handleOpen(st *store.Store, path string) (*store.Store, error) {
	if st != nil {
		if st.Path() == path {
			return st, nil
		}
		if err := st.Close(); err != nil {
			a.logger.Printf("closing previous store: %v", err)
		}
	}
	next, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", path, err)
	}
	return next, nil
}

func (a *Actor) handleRead(st *store.Store, id uuid.UUID) (*task.Task, error) {
	if st == nil {
		return nil, errors.New("store not open")
	}
	fields, ok, err := st.TaskFields(id.String())
	if err != nil {
		return nil, fmt.Errorf("read task %s: %w", id, err)
	}
	if !ok {
		return nil, nil
	}
	t, err := TaskFromFields(id, fields)
	if err != nil {
		return nil, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

// call sends one request and blocks for its reply. The reply channel is
// buffered so the worker can never block on a caller that gave up; if
// the worker dies between send and reply the pending reply (if any) is
// drained before reporting the closed state.
func (a *Actor) call(req request) response {
	req.reply = make(chan response, 1)
	select {
	case a.requests <- req:
	case <-a.done:
		return response{err: ErrReplicaClosed}
	}
	select {
	case resp := <-req.reply:
		return resp
	case <-a.done:
		select {
		case resp := <-req.reply:
			return resp
		default:
			return response{err: ErrReplicaClosed}
		}
	}
}

// Open implements ReplicaWrapper.
func (a *Actor) Open(path string) error {
	return a.call(request{kind: reqOpen, path: path}).err
}

// CommitOperations implements ReplicaWrapper.
func (a *Actor) CommitOperations(ops []Operation) error {
	return a.call(request{kind: reqCommit, ops: ops}).err
}

// ReadTask implements ReplicaWrapper.
func (a *Actor) ReadTask(id uuid.UUID) (*task.Task, error) {
	resp := a.call(request{kind: reqRead, id: id})
	return resp.task, resp.err
}

// Close shuts the worker down and waits for it to exit. Safe to call
// more than once; later calls return the first close's result.
func (a *Actor) Close() error {
	a.closeOnce.Do(func() {
		resp := a.call(request{kind: reqClose})
		if !errors.Is(resp.err, ErrReplicaClosed) {
			a.closeErr = resp.err
		}
	})
	<-a.done
	return a.closeErr
}
