// Package dispatch accepts raw TCP connections for the node and hands every
// connection to the worker pool as a single job.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/foundation/workerpool"
	"go.uber.org/ratelimit"
)

// Set of response status lines.
const (
	StatusOK            = "HTTP/1.1 200 OK"
	StatusNotFound      = "HTTP/1.1 404 NOT FOUND"
	StatusInternalError = "HTTP/1.1 500 INTERNAL SERVER ERROR"
)

// Set of pages served from the pages directory.
const (
	PageHello    = "hello.html"
	PageNotFound = "404.html"
)

// Set of request lines that are recognized. Matching is done on the
// literal prefix of the request.
var (
	requestRoot  = []byte("GET / HTTP/1.1\r\n")
	requestSleep = []byte("GET /sleep HTTP/1.1\r\n")
)

// Set of default values.
const (
	DefaultSleep       = 5 * time.Second
	DefaultReadTimeout = 10 * time.Second
	readSize           = 1024
	maxAcceptDelay     = time.Second
)

// Submitter represents the behavior required to run a job in the
// background.
type Submitter interface {
	Submit(job workerpool.Job) error
}

// =============================================================================

// Config represents the configuration required to dispatch connections.
type Config struct {
	Addr          string
	Pool          Submitter
	PagesDir      string
	SleepDuration time.Duration
	ReadTimeout   time.Duration
	AcceptRate    int
	EvHandler     func(v string, args ...any)
}

// Dispatcher owns the accept loop of the node.
type Dispatcher struct {
	addr        string
	pool        Submitter
	pagesDir    string
	sleep       time.Duration
	readTimeout time.Duration
	limiter     ratelimit.Limiter
	evHandler   func(v string, args ...any)

	mu       sync.Mutex
	listener net.Listener
}

// New constructs a dispatcher for use.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Pool == nil {
		return nil, errors.New("dispatch pool must be provided")
	}

	d := Dispatcher{
		addr:        cfg.Addr,
		pool:        cfg.Pool,
		pagesDir:    cfg.PagesDir,
		sleep:       cfg.SleepDuration,
		readTimeout: cfg.ReadTimeout,
		limiter:     ratelimit.NewUnlimited(),
		evHandler:   func(v string, args ...any) {},
	}

	if cfg.EvHandler != nil {
		d.evHandler = cfg.EvHandler
	}

	if d.sleep == 0 {
		d.sleep = DefaultSleep
	}

	if d.readTimeout == 0 {
		d.readTimeout = DefaultReadTimeout
	}

	if cfg.AcceptRate > 0 {
		d.limiter = ratelimit.New(cfg.AcceptRate)
	}

	return &d, nil
}

// Run listens on the configured address and dispatches connections until
// the context is cancelled. The ready function must report true before
// anything is listened on.
func (d *Dispatcher) Run(ctx context.Context, ready func() bool) error {
	if ready == nil || !ready() {
		return &ledger.AttributeError{Attribute: "receiving", Operation: "run"}
	}

	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.addr, err)
	}

	return d.Serve(ctx, ln)
}

// Serve dispatches connections accepted from the listener until the
// context is cancelled. The listener is closed when Serve returns.
func (d *Dispatcher) Serve(ctx context.Context, ln net.Listener) error {
	d.mu.Lock()
	d.listener = ln
	d.mu.Unlock()

	d.evHandler("dispatch: Serve: started: addr[%s]", ln.Addr())
	defer d.evHandler("dispatch: Serve: completed")

	// Closing the listener is what unblocks Accept.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		ln.Close()
	}()

	var tempDelay time.Duration
	for {
		d.limiter.Take()

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if !isTemporary(err) {
				return fmt.Errorf("accepting: %w", err)
			}

			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > maxAcceptDelay {
				tempDelay = maxAcceptDelay
			}

			d.evHandler("dispatch: Serve: accept: ERROR: %s: retrying in %v", err, tempDelay)

			select {
			case <-time.After(tempDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		tempDelay = 0

		if err := d.pool.Submit(func() { d.Handle(conn) }); err != nil {
			conn.Close()
			return fmt.Errorf("submitting connection: %w", err)
		}
	}
}

// Addr returns the address being listened on. Nil is returned until
// Serve is running.
func (d *Dispatcher) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// =============================================================================

// Handle reads the request from the connection, writes the response and
// closes the connection.
func (d *Dispatcher) Handle(conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(d.readTimeout)); err != nil {
		d.evHandler("dispatch: Handle: remote[%s]: deadline: ERROR: %s", conn.RemoteAddr(), err)
		return
	}

	buf := make([]byte, readSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		d.evHandler("dispatch: Handle: remote[%s]: read: ERROR: %s", conn.RemoteAddr(), err)
		return
	}

	status, page, sleep := Route(buf[:n])
	if sleep {
		time.Sleep(d.sleep)
	}

	body, err := os.ReadFile(filepath.Join(d.pagesDir, page))
	if err != nil {
		d.evHandler("dispatch: Handle: remote[%s]: page[%s]: ERROR: %s", conn.RemoteAddr(), page, err)
		status, body = StatusInternalError, nil
	}

	if _, err := conn.Write(Response(status, body)); err != nil {
		d.evHandler("dispatch: Handle: remote[%s]: write: ERROR: %s", conn.RemoteAddr(), err)
		return
	}

	d.evHandler("dispatch: Handle: remote[%s]: %s", conn.RemoteAddr(), status)
}

// isTemporary reports whether an accept error is worth retrying, such as
// running out of file descriptors.
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

// Route returns the status line and page for the request and whether
// the response is delayed.
func Route(request []byte) (status string, page string, sleep bool) {
	switch {
	case bytes.HasPrefix(request, requestRoot):
		return StatusOK, PageHello, false
	case bytes.HasPrefix(request, requestSleep):
		return StatusOK, PageHello, true
	}
	return StatusNotFound, PageNotFound, false
}

// Response formats the status line, content length and body.
func Response(status string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString(status)
	b.WriteString("\r\nContent-Length: ")
	b.WriteString(strconv.Itoa(len(body)))
	b.WriteString("\r\n\r\n")
	b.Write(body)
	return b.Bytes()
}
