package etcpak

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// bandRows is the number of block rows one worker encodes at a time.
const bandRows = 32

// Encoder compresses whole images with a fixed configuration. It is safe for
// concurrent use; each call tracks its own progress.
type Encoder struct {
	ctx *CodecContext
	cfg Config
}

// NewEncoder validates cfg and binds it to ctx. A nil ctx selects
// DefaultContext.
func NewEncoder(ctx *CodecContext, cfg Config) (*Encoder, error) {
	if ctx == nil {
		ctx = DefaultContext()
	}
	if err := ctx.check(); err != nil {
		return nil, err
	}
	if err := validateAndClampConfig(&cfg); err != nil {
		return nil, err
	}
	return &Encoder{ctx: ctx, cfg: cfg}, nil
}

// Config returns the validated configuration.
func (e *Encoder) Config() Config { return e.cfg }

// EncodeRGBA8 encodes a tightly packed RGBA8 buffer at the medium preset and
// returns the raw block stream.
func EncodeRGBA8(pix []byte, width, height int, format Format) ([]byte, error) {
	cfg, err := ConfigInit(format, EncodeMedium)
	if err != nil {
		return nil, err
	}
	enc, err := NewEncoder(nil, cfg)
	if err != nil {
		return nil, err
	}
	return enc.EncodeImage(context.Background(), &Image{Pix: pix, Width: width, Height: height})
}

// EncodeImage returns the block stream for img in row-major block order.
func (e *Encoder) EncodeImage(ctx context.Context, img *Image) ([]byte, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	out := make([]byte, MipLevelSize(e.cfg.Format, img.Width, img.Height, 0))
	p := newProgress(e.cfg.ProgressCallback, img.BlocksX()*img.BlocksY())
	if err := e.encodeLevel(ctx, img, out, p); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeTexture writes a complete texture file: the container header
// followed by level 0 and, when mipmaps is set, every further level down to
// 1x1. Each level is box-filtered from the previous one.
func (e *Encoder) EncodeTexture(ctx context.Context, img *Image, container Container, mipmaps bool) ([]byte, error) {
	if err := img.validate(); err != nil {
		return nil, err
	}
	levels := 1
	if mipmaps {
		levels = MipLevelCount(img.Width, img.Height)
	}
	hdr, err := MarshalHeader(container, e.cfg.Format, img.Width, img.Height, levels)
	if err != nil {
		return nil, err
	}

	total := 0
	for i := 0; i < levels; i++ {
		total += MipLevelSize(e.cfg.Format, img.Width, img.Height, i) / e.cfg.Format.BlockBytes()
	}
	p := newProgress(e.cfg.ProgressCallback, total)

	out := make([]byte, len(hdr)+MipChainSize(e.cfg.Format, img.Width, img.Height, levels))
	copy(out, hdr)
	off := len(hdr)
	level := img
	for i := 0; i < levels; i++ {
		if i > 0 {
			if level, err = Downsample(level); err != nil {
				return nil, err
			}
		}
		n := MipLevelSize(e.cfg.Format, img.Width, img.Height, i)
		if err := e.encodeLevel(ctx, level, out[off:off+n], p); err != nil {
			return nil, fmt.Errorf("etcpak: mip level %d: %w", i, err)
		}
		off += n
	}
	return out, nil
}

func (e *Encoder) encodeLevel(ctx context.Context, img *Image, dst []byte, p *progress) error {
	bw := blockWriter{buf: dst, size: e.cfg.Format.BlockBytes()}
	blocksX, blocksY := img.BlocksX(), img.BlocksY()
	return runBands(ctx, e.cfg.Workers, blocksY, func(y0, y1 int) error {
		var t Tile
		for by := y0; by < y1; by++ {
			for bx := 0; bx < blocksX; bx++ {
				img.Tile(bx, by, &t)
				e.ctx.encodeBlock(&e.cfg, &t, bw.block(by*blocksX+bx))
			}
		}
		p.add((y1 - y0) * blocksX)
		return nil
	})
}

// DecodeImage decodes a raw block stream of a width x height image.
func DecodeImage(format Format, data []byte, width, height int) (*Image, error) {
	return decodeImage(context.Background(), format, data, width, height, 0)
}

func decodeImage(ctx context.Context, format Format, data []byte, width, height, workers int) (*Image, error) {
	if !format.Valid() {
		return nil, newError(ErrBadFormat, "etcpak: invalid format")
	}
	img, err := NewImage(width, height)
	if err != nil {
		return nil, err
	}
	if need := MipLevelSize(format, width, height, 0); len(data) < need {
		return nil, errShort(format.String()+" block stream", need, len(data))
	}

	size := format.BlockBytes()
	blocksX := img.BlocksX()
	err = runBands(ctx, workers, img.BlocksY(), func(y0, y1 int) error {
		var t Tile
		for by := y0; by < y1; by++ {
			for bx := 0; bx < blocksX; bx++ {
				off := BlockOffset(format, blocksX, bx, by)
				decodeBlock(format, data[off:off+size], &t)
				img.SetTile(bx, by, &t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// DecodeTexture parses a texture file and decodes every mip level.
func DecodeTexture(data []byte) (Header, []*Image, error) {
	h, levels, err := ParseFile(data)
	if err != nil {
		return Header{}, nil, err
	}
	imgs := make([]*Image, len(levels))
	for i, lvl := range levels {
		w, ht := MipLevelDims(h.Width, h.Height, i)
		if imgs[i], err = decodeImage(context.Background(), h.Format, lvl, w, ht, 0); err != nil {
			return Header{}, nil, err
		}
	}
	return h, imgs, nil
}

// runBands calls fn over [y0, y1) ranges of bandRows block rows. Bands run
// on up to workers goroutines (GOMAXPROCS when workers is 0); ctx is
// checked before each band starts.
func runBands(ctx context.Context, workers, rows int, fn func(y0, y1 int) error) error {
	bands := (rows + bandRows - 1) / bandRows
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	if workers == 1 || bands == 1 {
		for y := 0; y < rows; y += bandRows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(y, min(y+bandRows, rows)); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for y := 0; y < rows; y += bandRows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(y, min(y+bandRows, rows))
		})
	}
	return g.Wait()
}

// blockWriter hands out non-overlapping block slices of an output buffer.
type blockWriter struct {
	buf  []byte
	size int
}

func (w blockWriter) block(i int) []byte {
	off := i * w.size
	if off < 0 || off+w.size > len(w.buf) {
		panic(fmt.Sprintf("etcpak: block %d outside a %d byte level", i, len(w.buf)))
	}
	return w.buf[off : off+w.size : off+w.size]
}

// progress throttles callbacks to steps of at least 1% (or 4096 blocks,
// whichever is larger) and always reports 100 at the end.
type progress struct {
	cb      func(float32)
	total   int
	done    atomic.Int64
	minDiff float32

	mu   sync.Mutex
	last float32
}

func newProgress(cb func(float32), total int) *progress {
	if cb == nil || total == 0 {
		return nil
	}
	return &progress{cb: cb, total: total, minDiff: max(1, 4096/float32(total)*100)}
}

func (p *progress) add(n int) {
	if p == nil {
		return
	}
	done := p.done.Add(int64(n))

	p.mu.Lock()
	defer p.mu.Unlock()
	if done >= int64(p.total) {
		if p.last != 100 {
			p.cb(100)
			p.last = 100
		}
		return
	}
	v := float32(math.Min(float64(done)/float64(p.total)*100, 100))
	if v-p.last > p.minDiff {
		p.cb(v)
		p.last = v
	}
}
