// Package uringhttp is a single-threaded HTTP server driven entirely by an
// io_uring submission/completion ring. Every connection is a small state
// machine advanced by completions; nothing blocks except the wait for the
// next completion.
package uringhttp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/panjf2000/gnet/v2/pkg/logging"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/y001j/uringhttp/httpcodec"
	"github.com/y001j/uringhttp/pool"
	"github.com/y001j/uringhttp/resource"
	"github.com/y001j/uringhttp/ring"
)

// tickToken marks the liveness timeout. The slab never issues it.
const tickToken uint64 = math.MaxUint64

var (
	// ErrServerClosed is passed to OnClose for connections torn down by Close.
	ErrServerClosed = errors.New("uringhttp: server closed")
	// ErrNoProgress is passed to OnClose when a send wrote nothing.
	ErrNoProgress = errors.New("uringhttp: send made no progress")
)

// Server owns the ring proxy, the buffer pool and the connection table. It is
// not safe for concurrent use, except for Stats.
type Server struct {
	opts     Options
	proxy    *ring.Proxy
	registry *resource.Registry
	router   *httpcodec.Router
	handler  EventHandler
	logger   logging.Logger
	listenFd int

	slots       *Slots
	buffers     *pool.Buffers
	conns       *pool.Slab[State]
	acceptToken pool.Token

	tick      ring.Timespec
	tickArmed bool

	stats Stats

	// closeFd closes a connection socket. Tests swap it out.
	closeFd func(fd int) error

	booted   bool
	shutdown bool
	closed   bool
}

// NewFromRing wraps r in a proxy sized by opts.BacklogHint and calls New.
func NewFromRing(r ring.Ring, registry *resource.Registry, listenFd int, opts Options) (*Server, error) {
	opts = opts.withDefaults()
	return New(ring.NewProxy(r, opts.BacklogHint), registry, listenFd, opts)
}

// New builds a server accepting on listenFd. It checks that every route's
// response fits a connection buffer and, in fixed mode, registers the
// resources with the ring. The server takes ownership of proxy; the caller
// keeps the listener and the registry.
func New(proxy *ring.Proxy, registry *resource.Registry, listenFd int, opts Options) (*Server, error) {
	opts = opts.withDefaults()
	for _, rt := range opts.Router.Routes() {
		res, ok := registry.Get(rt.Resource)
		if !ok {
			return nil, pkgerrors.Wrapf(resource.ErrUnknownResource, "route to %s", rt.Resource)
		}
		if need := httpcodec.ResponseLen(rt.Status, res.Size); need > opts.BufferSize {
			return nil, pkgerrors.Errorf("buffer size %d cannot hold the %d byte response for %s",
				opts.BufferSize, need, rt.Resource)
		}
	}
	if err := registry.Register(proxy); err != nil {
		return nil, pkgerrors.Wrap(err, "register resources")
	}

	s := &Server{
		opts:     opts,
		proxy:    proxy,
		registry: registry,
		router:   opts.Router,
		handler:  opts.Handler,
		logger:   opts.Logger,
		listenFd: listenFd,
		buffers:  pool.NewBuffers(opts.BufferSize, opts.AcceptCapacity),
		conns:    pool.NewSlab[State](opts.AcceptCapacity + 1),
		closeFd:  unix.Close,
	}
	s.acceptToken = s.conns.Insert(accepting{})
	s.slots = NewSlots(listenFd, opts.AcceptCapacity, s.acceptToken)
	if opts.TickInterval > 0 {
		s.tick = ring.Timespec{
			Sec:  int64(opts.TickInterval / time.Second),
			Nsec: int64(opts.TickInterval % time.Second),
		}
	}
	return s, nil
}

// Stats returns the live counters.
func (s *Server) Stats() *Stats { return &s.stats }

// Live is the number of open connections.
func (s *Server) Live() int { return s.conns.Len() - 1 }

// Serve runs the loop on the calling goroutine, locked to its OS thread,
// until ctx is cancelled, a handler asks for Shutdown or the ring fails.
// Cancellation is noticed on the next wake-up, so without a TickInterval an
// idle server only stops on its next completion.
func (s *Server) Serve(ctx context.Context) error {
	if s.closed {
		return ring.ErrClosed
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.boot()
	defer s.handler.OnShutdown(s)

	for !s.shutdown {
		if ctx.Err() != nil {
			s.logger.Infof("uringhttp: context done, leaving the loop")
			return nil
		}
		if err := s.iterate(); err != nil {
			return err
		}
	}
	s.logger.Infof("uringhttp: shutdown requested, leaving the loop")
	return nil
}

func (s *Server) boot() {
	if s.booted {
		return
	}
	s.booted = true
	if s.handler.OnBoot(s) == Shutdown {
		s.shutdown = true
		return
	}
	s.slots.TopUp(s.opts.InitialAccepts, s.proxy)
	s.armTick()
	s.logger.Infof("uringhttp: serving on fd %d, %d accepts armed, buffer size %d, fixed resources %t",
		s.listenFd, s.slots.Outstanding(), s.opts.BufferSize, s.registry.Fixed())
}

// iterate is one loop round: submit and wait, run every visible completion
// through the state machine, top up accepts and drain the backlog.
func (s *Server) iterate() error {
	if _, err := s.proxy.SubmitAndWait(1); err != nil {
		return pkgerrors.Wrap(err, "submit and wait")
	}
	for {
		c, ok := s.proxy.PollCompletion()
		if !ok {
			break
		}
		s.dispatch(c)
	}
	if !s.shutdown {
		s.slots.TopUp(s.slots.Capacity()-s.slots.Outstanding(), s.proxy)
		s.armTick()
	}
	if moved := s.proxy.DrainBacklog(); moved > 0 {
		s.logger.Debugf("uringhttp: moved %d ops out of the backlog", moved)
	}
	s.stats.backlogged.Store(int64(s.proxy.Backlogged()))
	return nil
}

func (s *Server) armTick() {
	if s.opts.TickInterval <= 0 || s.tickArmed {
		return
	}
	s.proxy.Push(ring.Timeout(&s.tick).WithUserData(tickToken))
	s.tickArmed = true
}

func (s *Server) dispatch(c ring.Completion) {
	if c.UserData == tickToken {
		s.tickArmed = false
		return
	}
	tok := pool.Token(c.UserData)
	st, ok := s.conns.Get(tok)
	if !ok {
		panic(fmt.Sprintf("uringhttp: completion for unknown token %#x (res %d)", c.UserData, c.Res))
	}
	if _, acc := st.(accepting); !acc && c.Res < 0 {
		err := c.Err()
		s.stats.failed.Inc()
		s.logger.Warnf("uringhttp: %s failed on fd %d: %v", st.Phase(), st.socket(), err)
		s.teardown(tok, st, err)
		return
	}

	switch st := st.(type) {
	case accepting:
		s.onAccept(c)
	case awaitingReadable:
		s.onReadable(tok, st)
	case receiving:
		s.onReceive(tok, st, int(c.Res))
	case readingResource:
		s.onResourceRead(tok, st, int(c.Res))
	case sending:
		s.onSent(tok, st, int(c.Res))
	default:
		panic(fmt.Sprintf("uringhttp: token %#x in unexpected state %T", c.UserData, st))
	}
}

func (s *Server) onAccept(c ring.Completion) {
	s.slots.OnAcceptCompleted()
	if c.Res < 0 {
		s.stats.acceptFailed.Inc()
		s.logger.Warnf("uringhttp: accept on fd %d failed: %v", s.listenFd, c.Err())
		return
	}

	fd := int(c.Res)
	st := awaitingReadable{fd: fd}
	tok := s.conns.Insert(st)
	s.stats.accepted.Inc()
	s.stats.live.Inc()

	switch s.handler.OnOpen(Conn{Token: tok, Fd: fd}) {
	case Close:
		s.teardown(tok, st, nil)
		return
	case Shutdown:
		s.shutdown = true
	}
	s.proxy.Push(ring.PollAdd(fd, ring.PollIn).WithUserData(uint64(tok)))
}

func (s *Server) onReadable(tok pool.Token, st awaitingReadable) {
	h, buf := s.buffers.Acquire()
	s.conns.Set(tok, receiving{fd: st.fd, buf: h})
	s.proxy.Push(ring.Recv(st.fd, buf).WithUserData(uint64(tok)))
}

func (s *Server) onReceive(tok pool.Token, st receiving, n int) {
	if n == 0 {
		s.teardown(tok, st, nil)
		return
	}
	s.stats.requests.Inc()
	buf := s.buffers.Bytes(st.buf)
	req := buf[:n]

	switch s.handler.OnTraffic(Conn{Token: tok, Fd: st.fd}, req) {
	case Close:
		s.teardown(tok, st, nil)
		return
	case Shutdown:
		s.shutdown = true
	}

	status, id := s.router.Decode(req)
	op, err := s.registry.ReadOp(id, buf)
	if err != nil {
		s.stats.failed.Inc()
		s.logger.Errorf("uringhttp: no read for %s on fd %d: %v", id, st.fd, err)
		s.teardown(tok, st, err)
		return
	}
	s.conns.Set(tok, readingResource{fd: st.fd, buf: st.buf, status: status, res: id})
	s.proxy.Push(op.WithUserData(uint64(tok)))
}

func (s *Server) onResourceRead(tok pool.Token, st readingResource, n int) {
	out := s.buffers.Bytes(st.buf)
	body := s.registry.Body(st.res, out, n)
	total, err := httpcodec.Encode(st.status, body, out)
	if err != nil {
		s.stats.failed.Inc()
		s.logger.Errorf("uringhttp: encode %s on fd %d: %v", st.res, st.fd, err)
		s.teardown(tok, st, err)
		return
	}
	s.conns.Set(tok, sending{fd: st.fd, buf: st.buf, total: total})
	s.proxy.Push(ring.Send(st.fd, out[:total]).WithUserData(uint64(tok)))
}

func (s *Server) onSent(tok pool.Token, st sending, written int) {
	if written == 0 {
		s.stats.failed.Inc()
		s.teardown(tok, st, ErrNoProgress)
		return
	}
	st.off += written
	if st.off < st.total {
		s.conns.Set(tok, st)
		out := s.buffers.Bytes(st.buf)
		s.proxy.Push(ring.Send(st.fd, out[st.off:st.total]).WithUserData(uint64(tok)))
		return
	}

	s.buffers.Release(st.buf)
	s.stats.responses.Inc()
	next := awaitingReadable{fd: st.fd}
	s.conns.Set(tok, next)

	switch s.handler.OnWritten(Conn{Token: tok, Fd: st.fd}) {
	case Close:
		s.teardown(tok, next, nil)
		return
	case Shutdown:
		s.shutdown = true
	}
	s.proxy.Push(ring.PollAdd(st.fd, ring.PollIn).WithUserData(uint64(tok)))
}

// teardown ends a connection whose state has no operation outstanding:
// release its buffer, close its socket and forget its token.
func (s *Server) teardown(tok pool.Token, st State, cause error) {
	if h, ok := st.buffer(); ok {
		s.buffers.Release(h)
	}
	fd := st.socket()
	if err := s.closeFd(fd); err != nil {
		s.logger.Warnf("uringhttp: close fd %d: %v", fd, err)
	}
	s.conns.Remove(tok)
	s.stats.closed.Inc()
	s.stats.live.Dec()
	if s.handler.OnClose(Conn{Token: tok, Fd: fd}, cause) == Shutdown {
		s.shutdown = true
	}
}

// Close unregisters the resources and closes the ring, abandoning every
// operation still in flight, then tears down every live connection. Safe to
// call repeatedly.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := multierr.Combine(s.registry.Unregister(s.proxy), s.proxy.Close())

	var live []pool.Token
	s.conns.Range(func(tok pool.Token, st State) bool {
		if st.Phase() != Accepting {
			live = append(live, tok)
		}
		return true
	})
	for _, tok := range live {
		st, _ := s.conns.Get(tok)
		s.teardown(tok, st, ErrServerClosed)
	}
	return err
}
