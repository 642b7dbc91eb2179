package etcpak

import (
	"sync"
	"sync/atomic"
)

// CodecContext owns the lookup tables the block encoders share. The tables
// are read-only once built, so one context can serve any number of
// goroutines.
//
// The zero value is usable after Init; encoders that depend on the tables
// reject an uninitialized context with ErrBadContext.
type CodecContext struct {
	once  sync.Once
	ready atomic.Bool

	etcSolid [8][4][256]etcSolidEntry

	bc1Match5 [256][2]uint8
	bc1Match6 [256][2]uint8

	ditherRB [256 + 2*ditherOffset]uint8
	ditherG  [256 + 2*ditherOffset]uint8

	bc7 bc7Tables
}

// NewCodecContext returns an initialized context.
func NewCodecContext() *CodecContext {
	c := &CodecContext{}
	c.Init()
	return c
}

// Init builds the tables. Only the first call does any work; concurrent
// callers block until it has finished.
func (c *CodecContext) Init() {
	c.once.Do(func() {
		buildETCSolidTable(&c.etcSolid)
		buildBC1SolidTables(&c.bc1Match5, &c.bc1Match6)
		buildDitherTables(&c.ditherRB, &c.ditherG)
		buildBC7Tables(&c.bc7)
		c.ready.Store(true)
	})
}

// Ready reports whether Init has completed.
func (c *CodecContext) Ready() bool {
	return c != nil && c.ready.Load()
}

var defaultContext struct {
	once sync.Once
	ctx  *CodecContext
}

// DefaultContext returns the process-wide context, building it on first use.
func DefaultContext() *CodecContext {
	defaultContext.once.Do(func() {
		defaultContext.ctx = NewCodecContext()
	})
	return defaultContext.ctx
}

func (c *CodecContext) check() error {
	if !c.Ready() {
		return newError(ErrBadContext, "etcpak: codec context not initialized")
	}
	return nil
}
