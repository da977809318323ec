// Package resource holds the fixed set of files the server can answer with.
// Each file is opened once at startup and, in fixed mode, pinned in the
// ring's registered file and buffer tables.
package resource

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/y001j/uringhttp/ring"
)

// ID selects a resource.
type ID uint8

const (
	Hello ID = iota
	NotFound
)

func (id ID) String() string {
	switch id {
	case Hello:
		return "hello"
	case NotFound:
		return "not-found"
	default:
		return fmt.Sprintf("resource(%d)", uint8(id))
	}
}

// ErrUnknownResource is returned for an ID the registry does not hold.
var ErrUnknownResource = errors.New("resource: unknown resource")

// Spec names a resource file.
type Spec struct {
	ID   ID
	Path string
}

// Resource is one opened file.
type Resource struct {
	ID   ID
	Path string
	Size int

	file  *os.File
	fixed int
}

// Registry is built once and read-only afterwards.
type Registry struct {
	byID    map[ID]*Resource
	order   []*Resource
	fixed   bool
	buffers [][]byte

	registered bool
}

// Load opens every listed file. With fixed set, each file's content is also
// loaded into a buffer that Register pins in the kernel.
func Load(specs []Spec, fixed bool) (*Registry, error) {
	r := &Registry{byID: make(map[ID]*Resource, len(specs)), fixed: fixed}
	for _, s := range specs {
		if _, dup := r.byID[s.ID]; dup {
			_ = r.Close()
			return nil, pkgerrors.Errorf("resource %s listed twice", s.ID)
		}
		res, err := r.open(s)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.byID[s.ID] = res
		r.order = append(r.order, res)
	}
	return r, nil
}

func (r *Registry) open(s Spec) (*Resource, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open resource %s", s.ID)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, pkgerrors.Wrapf(err, "stat resource %s", s.ID)
	}
	res := &Resource{ID: s.ID, Path: s.Path, Size: int(st.Size()), file: f, fixed: -1}
	if r.fixed {
		// A registered buffer may not be empty.
		buf := make([]byte, max(res.Size, 1))
		if _, err := f.ReadAt(buf[:res.Size], 0); err != nil && err != io.EOF {
			_ = f.Close()
			return nil, pkgerrors.Wrapf(err, "preload resource %s", s.ID)
		}
		res.fixed = len(r.buffers)
		r.buffers = append(r.buffers, buf)
	}
	return res, nil
}

// Fixed reports whether resources are served from registered tables.
func (r *Registry) Fixed() bool { return r.fixed }

// Get returns the resource for id.
func (r *Registry) Get(id ID) (*Resource, bool) {
	res, ok := r.byID[id]
	return res, ok
}

// MaxSize is the size of the largest resource.
func (r *Registry) MaxSize() int {
	n := 0
	for _, res := range r.order {
		n = max(n, res.Size)
	}
	return n
}

// Register pins descriptors and buffers with the ring. It is a no-op outside
// fixed mode.
func (r *Registry) Register(p *ring.Proxy) error {
	if !r.fixed || r.registered {
		return nil
	}
	fds := make([]int32, len(r.order))
	for _, res := range r.order {
		fds[res.fixed] = int32(res.file.Fd())
	}
	if err := p.RegisterFiles(fds); err != nil {
		return pkgerrors.Wrap(err, "register resource files")
	}
	if err := p.RegisterBuffers(r.buffers); err != nil {
		return multierr.Append(pkgerrors.Wrap(err, "register resource buffers"), p.Unregister())
	}
	r.registered = true
	return nil
}

// Unregister releases what Register pinned. Safe to call repeatedly.
func (r *Registry) Unregister(p *ring.Proxy) error {
	if !r.registered {
		return nil
	}
	r.registered = false
	return p.Unregister()
}

// ReadOp builds the read for id. In plain mode the file is read into dst; in
// fixed mode into the resource's registered buffer through its registered
// descriptor, and dst is not touched. The registered buffer only ever
// receives the file's own bytes, so concurrent reads of one resource are
// interchangeable.
func (r *Registry) ReadOp(id ID, dst []byte) (ring.Op, error) {
	res, ok := r.byID[id]
	if !ok {
		return ring.Op{}, ErrUnknownResource
	}
	if r.fixed {
		buf := r.buffers[res.fixed]
		// Reads of one resource overlap in buf; they all write the same bytes.
		return ring.ReadFixed(res.fixed, buf, 0, uint16(res.fixed)).WithFixedFile(res.fixed), nil
	}
	return ring.Read(int(res.file.Fd()), dst[:min(res.Size, len(dst))], 0), nil
}

// Body returns the n bytes a completed ReadOp produced.
func (r *Registry) Body(id ID, dst []byte, n int) []byte {
	res := r.byID[id]
	if r.fixed {
		return r.buffers[res.fixed][:n]
	}
	return dst[:n]
}

// Close closes every resource file.
func (r *Registry) Close() error {
	var err error
	for _, res := range r.order {
		if res.file != nil {
			err = multierr.Append(err, res.file.Close())
			res.file = nil
		}
	}
	return err
}
