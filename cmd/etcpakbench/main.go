package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"runtime"
	"runtime/pprof"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/wolfpld/etcpak/etcpak"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "decode":
		decodeCmd(os.Args[2:])
	case "encode":
		encodeCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  etcpakbench decode --in <file.pvr|dds|ktx> [--iters N] [--checksum fnv|none]")
	fmt.Fprintln(os.Stderr, "  etcpakbench encode [-w W] [-h H] [--format etc2-rgb] [--quality fast|medium|thorough|exhaustive] [-j N] [--iters N] [--out file.pvr] [--checksum fnv|none]")
}

type profileFlags struct {
	cpuprofile  string
	memprofile  string
	memprofRate int
}

func (p *profileFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&p.cpuprofile, "cpuprofile", "", "optional CPU profile output path")
	fs.StringVar(&p.memprofile, "memprofile", "", "optional memory profile output path")
	fs.IntVar(&p.memprofRate, "memprofilerate", 0, "optional runtime.MemProfileRate override (0 = default)")
}

// start begins CPU profiling if requested; the returned func stops it and
// writes the heap profile.
func (p *profileFlags) start() func() {
	if p.memprofRate > 0 {
		runtime.MemProfileRate = p.memprofRate
	}
	var cpuFile *os.File
	if p.cpuprofile != "" {
		f, err := os.Create(p.cpuprofile)
		if err != nil {
			fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			fatal(err)
		}
		cpuFile = f
	}
	return func() {
		if cpuFile != nil {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}
		if p.memprofile == "" {
			return
		}
		f, err := os.Create(p.memprofile)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fatal(err)
		}
	}
}

func decodeCmd(args []string) {
	fs := pflag.NewFlagSet("decode", pflag.ExitOnError)
	var (
		inPath      string
		iters       int
		checksumOpt string
		prof        profileFlags
	)
	fs.StringVar(&inPath, "in", "", "input texture file")
	fs.IntVar(&iters, "iters", 50, "iterations")
	fs.StringVar(&checksumOpt, "checksum", "fnv", "checksum: fnv|none")
	prof.register(fs)
	_ = fs.Parse(args)

	if inPath == "" {
		fmt.Fprintln(os.Stderr, "missing --in")
		os.Exit(2)
	}
	if iters <= 0 {
		fmt.Fprintln(os.Stderr, "iters must be > 0")
		os.Exit(2)
	}
	doChecksum, err := parseChecksum(checksumOpt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		fatal(err)
	}
	if data, err = etcpak.Unwrap(data); err != nil {
		fatal(err)
	}
	hdr, levels, err := etcpak.ParseFile(data)
	if err != nil {
		fatal(err)
	}
	blocks := levels[0]

	stop := prof.start()
	h := fnv.New64a()
	times := make([]time.Duration, iters)
	start := time.Now()
	for i := range times {
		t0 := time.Now()
		img, err := etcpak.DecodeImage(hdr.Format, blocks, hdr.Width, hdr.Height)
		if err != nil {
			fatal(err)
		}
		times[i] = time.Since(t0)
		if doChecksum {
			h.Write(img.Pix)
		}
	}
	dur := time.Since(start)
	stop()

	fmt.Printf("RESULT mode=decode kernel=%s format=%s size=%dx%d iters=%d seconds=%.6f median_ms=%.3f mpix/s=%.3f checksum=%s\n",
		etcpak.Kernel(),
		hdr.Format,
		hdr.Width, hdr.Height,
		iters,
		dur.Seconds(),
		medianMillis(times),
		float64(hdr.Width*hdr.Height)*float64(iters)/dur.Seconds()/1e6,
		fmtChecksum(h.Sum64(), doChecksum),
	)
}

func encodeCmd(args []string) {
	fs := pflag.NewFlagSet("encode", pflag.ExitOnError)
	var (
		width       int
		height      int
		format      string
		quality     string
		workers     int
		iters       int
		outPath     string
		checksumOpt string
		prof        profileFlags
	)
	fs.IntVarP(&width, "width", "w", 1024, "width")
	fs.IntVarP(&height, "height", "h", 1024, "height")
	fs.StringVar(&format, "format", "etc2-rgb", "block format")
	fs.StringVar(&quality, "quality", "medium", "quality: fast|medium|thorough|exhaustive")
	fs.IntVarP(&workers, "workers", "j", 1, "worker goroutines (0 = all cores)")
	fs.IntVar(&iters, "iters", 9, "iterations")
	fs.StringVar(&outPath, "out", "", "optional output .pvr/.dds path (writes last iteration)")
	fs.StringVar(&checksumOpt, "checksum", "fnv", "checksum: fnv|none")
	prof.register(fs)
	_ = fs.Parse(args)

	if width <= 0 || height <= 0 {
		fmt.Fprintln(os.Stderr, "invalid dimensions")
		os.Exit(2)
	}
	if iters <= 0 {
		fmt.Fprintln(os.Stderr, "iters must be > 0")
		os.Exit(2)
	}
	f, err := etcpak.ParseFormat(format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	q, err := etcpak.ParseQuality(quality)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	doChecksum, err := parseChecksum(checksumOpt)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := etcpak.ConfigInit(f, q)
	if err != nil {
		fatal(err)
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	enc, err := etcpak.NewEncoder(nil, cfg)
	if err != nil {
		fatal(err)
	}

	img, err := etcpak.NewImage(width, height)
	if err != nil {
		fatal(err)
	}
	fillPatternRGBA8(img.Pix, width, height)

	stop := prof.start()
	ctx := context.Background()
	h := fnv.New64a()
	times := make([]time.Duration, iters)
	var last []byte
	start := time.Now()
	for i := range times {
		t0 := time.Now()
		out, err := enc.EncodeImage(ctx, img)
		if err != nil {
			fatal(err)
		}
		times[i] = time.Since(t0)
		if doChecksum {
			h.Write(out)
		}
		last = out
	}
	dur := time.Since(start)
	stop()

	if outPath != "" {
		if err := writeTexture(outPath, f, width, height, last); err != nil {
			fatal(err)
		}
	}

	fmt.Printf("RESULT mode=encode kernel=%s format=%s quality=%s workers=%d size=%dx%d iters=%d seconds=%.6f median_ms=%.3f mpix/s=%.3f checksum=%s\n",
		etcpak.Kernel(),
		f,
		q,
		enc.Config().Workers,
		width, height,
		iters,
		dur.Seconds(),
		medianMillis(times),
		float64(width*height)*float64(iters)/dur.Seconds()/1e6,
		fmtChecksum(h.Sum64(), doChecksum),
	)
}

func writeTexture(path string, f etcpak.Format, width, height int, blocks []byte) error {
	c := etcpak.ContainerPVR
	if strings.HasSuffix(strings.ToLower(path), ".dds") {
		c = etcpak.ContainerDDS
	}
	hdr, err := etcpak.MarshalHeader(c, f, width, height, 1)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(hdr, blocks...), 0o644)
}

func parseChecksum(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fnv":
		return true, nil
	case "none":
		return false, nil
	}
	return false, fmt.Errorf("invalid --checksum %q (want fnv|none)", s)
}

func medianMillis(times []time.Duration) float64 {
	s := slices.Clone(times)
	slices.Sort(s)
	return float64(s[len(s)/2].Microseconds()) / 1000
}

func fillPatternRGBA8(pix []byte, width, height int) {
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * 4
			pix[off+0] = uint8(x*3 + y*5)
			pix[off+1] = uint8(x*11 + y*13)
			pix[off+2] = uint8(x ^ y)
			pix[off+3] = 255 - uint8((x*5+y*7)&0xFF)
		}
	}
}

func fmtChecksum(v uint64, enabled bool) string {
	if !enabled {
		return "none"
	}
	return fmt.Sprintf("%016x", v)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
