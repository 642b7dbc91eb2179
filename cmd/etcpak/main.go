package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dblezek/tga"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"
	"golang.org/x/image/bmp"
	"golang.org/x/term"

	"github.com/wolfpld/etcpak/etcpak"

	_ "image/jpeg"
)

const benchRuns = 9

var errUsage = errors.New("usage")

type options struct {
	view       bool
	stats      bool
	bench      bool
	benchMT    bool
	mipmaps    bool
	dither     bool
	alphaPath  string
	etc1       bool
	rgba       bool
	noHeur     bool
	dxtc       bool
	bc7        bool
	bc4        bool
	bc5        bool
	r11        bool
	rg11       bool
	codec      string
	quality    string
	container  string
	configPath string
	zstd       bool
	workers    int
	info       bool
}

func main() {
	err := run(os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFlagSet(o *options) *pflag.FlagSet {
	fs := pflag.NewFlagSet("etcpak", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.BoolVarP(&o.view, "view", "v", false, "view mode (loads pvr/dds/ktx file, decodes it and saves to png or bmp)")
	fs.BoolVarP(&o.stats, "stats", "s", false, "display image quality measurements")
	fs.BoolVarP(&o.bench, "bench", "b", false, "benchmark mode")
	fs.BoolVarP(&o.benchMT, "bench-mt", "M", false, "switch benchmark to multi-threaded mode")
	fs.BoolVarP(&o.mipmaps, "mipmaps", "m", false, "generate mipmaps")
	fs.BoolVarP(&o.dither, "dither", "d", false, "enable dithering")
	fs.StringVarP(&o.alphaPath, "alpha", "a", "", "save alpha channel in a separate file")
	fs.BoolVar(&o.etc1, "etc1", false, "use ETC1 mode (ETC2 is used by default)")
	fs.BoolVar(&o.rgba, "rgba", false, "enable RGBA in ETC2 mode (RGB is used by default)")
	fs.BoolVar(&o.noHeur, "disable-heuristics", false, "disable heuristic selector of compression mode")
	fs.BoolVar(&o.dxtc, "dxtc", false, "use DXT1/DXT5 compression")
	fs.BoolVar(&o.bc7, "bc7", false, "use BC7 compression")
	fs.BoolVar(&o.bc4, "bc4", false, "use BC4 compression (red channel)")
	fs.BoolVar(&o.bc5, "bc5", false, "use BC5 compression (red and green channels)")
	fs.BoolVar(&o.r11, "r11", false, "use EAC R11 compression")
	fs.BoolVar(&o.rg11, "rg11", false, "use EAC RG11 compression")
	fs.StringVarP(&o.codec, "codec", "c", "", "codec by name: "+formatNames())
	fs.StringVarP(&o.quality, "quality", "q", "medium", "BC7 quality: fast|medium|thorough|exhaustive")
	fs.StringVar(&o.container, "container", "", "output container: pvr|dds (default from output extension)")
	fs.StringVar(&o.configPath, "config", "", "YAML encoder config applied over the flags")
	fs.BoolVar(&o.zstd, "zstd", false, "wrap the output file in a zstd frame")
	fs.IntVarP(&o.workers, "workers", "j", 0, "worker goroutines (0 = all cores)")
	fs.BoolVar(&o.info, "info", false, "print texture header info and exit")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: etcpak [options] input.png {output.pvr}")
		fmt.Fprintln(os.Stderr, "  Options:")
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nOutput file name may be unneeded for some modes.")
	}
	return fs
}

func formatNames() string {
	names := make([]string, len(etcpak.AllFormats))
	for i, f := range etcpak.AllFormats {
		names[i] = f.String()
	}
	return strings.Join(names, "|")
}

func run(args []string) error {
	var o options
	fs := newFlagSet(&o)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pos := fs.Args()
	switch {
	case len(pos) < 1, !o.bench && !o.info && len(pos) < 2:
		fs.Usage()
		return fmt.Errorf("%w: missing input or output file", errUsage)
	}
	input := pos[0]
	output := ""
	if len(pos) > 1 {
		output = pos[1]
	}

	switch {
	case o.info:
		return runInfo(input)
	case o.bench && o.view:
		return benchDecode(input)
	case o.view:
		return runView(input, output)
	}

	img, loadTime, err := loadImage(input)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(&o, img.HasAlpha())
	if err != nil {
		return err
	}
	if o.bench {
		fmt.Printf("Image load time: %0.3f ms\n", float64(loadTime.Microseconds())/1000)
		return benchEncode(ctx, &o, cfg, img)
	}
	return runEncode(ctx, &o, cfg, img, output)
}

// selectFormat picks the output format from the mode flags; -c wins over
// everything else.
func selectFormat(o *options, hasAlpha bool) (etcpak.Format, error) {
	if o.codec != "" {
		f, err := etcpak.ParseFormat(o.codec)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", errUsage, err)
		}
		return f, nil
	}
	switch {
	case o.bc7:
		return etcpak.FormatBC7, nil
	case o.bc5:
		return etcpak.FormatBC5, nil
	case o.bc4:
		return etcpak.FormatBC4, nil
	case o.rg11:
		return etcpak.FormatETC2RG11, nil
	case o.r11:
		return etcpak.FormatETC2R11, nil
	case o.dxtc:
		if hasAlpha {
			return etcpak.FormatBC3, nil
		}
		return etcpak.FormatBC1, nil
	case o.rgba:
		if hasAlpha {
			return etcpak.FormatETC2RGBA, nil
		}
		return etcpak.FormatETC2RGB, nil
	case o.etc1:
		return etcpak.FormatETC1, nil
	}
	return etcpak.FormatETC2RGB, nil
}

func buildConfig(o *options, hasAlpha bool) (etcpak.Config, error) {
	format, err := selectFormat(o, hasAlpha)
	if err != nil {
		return etcpak.Config{}, err
	}
	quality, err := etcpak.ParseQuality(o.quality)
	if err != nil {
		return etcpak.Config{}, fmt.Errorf("%w: %v", errUsage, err)
	}
	cfg, err := etcpak.ConfigInit(format, quality)
	if err != nil {
		return etcpak.Config{}, err
	}

	if o.dither && format.IsETC() && format != etcpak.FormatETC1 {
		fmt.Println("Dithering is disabled in ETC2 mode, as it degrades image quality.")
		o.dither = false
	}
	cfg.Dither = o.dither
	cfg.Heuristics = !o.noHeur
	if o.workers < 0 {
		return etcpak.Config{}, fmt.Errorf("%w: -j must be >= 0", errUsage)
	}
	if o.workers > 0 {
		cfg.Workers = o.workers
	}

	if o.configPath != "" {
		data, err := os.ReadFile(o.configPath)
		if err != nil {
			return etcpak.Config{}, fmt.Errorf("read config: %w", err)
		}
		cfg, err = etcpak.ParseConfigYAML(data, cfg)
		if err != nil {
			return etcpak.Config{}, fmt.Errorf("%s: %w", o.configPath, err)
		}
	}
	return cfg, nil
}

func loadImage(path string) (*etcpak.Image, time.Duration, error) {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read input: %w", err)
	}

	var src image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tga":
		src, err = tga.Decode(bytes.NewReader(data))
	case ".bmp":
		src, err = bmp.Decode(bytes.NewReader(data))
	default:
		src, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	if nrgba, ok := src.(*image.NRGBA); ok {
		return etcpak.ImageFromNRGBA(nrgba), time.Since(start), nil
	}
	img, err := etcpak.ImageFromImage(src)
	if err != nil {
		return nil, 0, fmt.Errorf("convert %s: %w", path, err)
	}
	return img, time.Since(start), nil
}

func containerFor(o *options, output string) (etcpak.Container, error) {
	name := o.container
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), ".")
		if name != "dds" {
			name = "pvr"
		}
	}
	c, err := etcpak.ParseContainer(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errUsage, err)
	}
	return c, nil
}

func runEncode(ctx context.Context, o *options, cfg etcpak.Config, img *etcpak.Image, output string) error {
	container, err := containerFor(o, output)
	if err != nil {
		return err
	}

	bar := newProgressBar()
	cfg.ProgressCallback = bar.update
	enc, err := etcpak.NewEncoder(nil, cfg)
	if err != nil {
		return err
	}
	data, err := enc.EncodeTexture(ctx, img, container, o.mipmaps)
	bar.finish()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := writeTexture(output, data, o.zstd); err != nil {
		return err
	}

	if o.alphaPath != "" && img.HasAlpha() && !cfg.Format.HasAlpha() {
		alphaCfg := cfg
		alphaCfg.Dither = false
		alphaCfg.ProgressCallback = nil
		aenc, err := etcpak.NewEncoder(nil, alphaCfg)
		if err != nil {
			return err
		}
		adata, err := aenc.EncodeTexture(ctx, alphaAsGray(img), container, o.mipmaps)
		if err != nil {
			return fmt.Errorf("encode alpha: %w", err)
		}
		if err := writeTexture(o.alphaPath, adata, o.zstd); err != nil {
			return err
		}
	}

	if o.stats {
		h, err := etcpak.ParseHeader(data)
		if err != nil {
			return err
		}
		out, err := etcpak.DecodeImage(cfg.Format, data[h.DataOffset:], img.Width, img.Height)
		if err != nil {
			return fmt.Errorf("decode for stats: %w", err)
		}
		st, err := etcpak.CompareRGB(img, out)
		if err != nil {
			return err
		}
		fmt.Println("RGB data")
		fmt.Printf("  RMSE: %f\n", st.RMSE)
		fmt.Printf("  PSNR: %f\n", st.PSNR)
	}
	return nil
}

// alphaAsGray copies the alpha channel into RGB of an opaque image.
func alphaAsGray(img *etcpak.Image) *etcpak.Image {
	out, _ := etcpak.NewImage(img.Width, img.Height)
	src := img.ToNRGBA()
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			a := src.Pix[src.PixOffset(x, y)+3]
			o := (y*img.Width + x) * 4
			out.Pix[o], out.Pix[o+1], out.Pix[o+2], out.Pix[o+3] = a, a, a, 255
		}
	}
	return out
}

func writeTexture(path string, data []byte, compress bool) error {
	if compress {
		var err error
		data, err = etcpak.Supercompress(data, zstd.SpeedDefault)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func readTexture(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return etcpak.Unwrap(data)
}

func runInfo(input string) error {
	data, err := readTexture(input)
	if err != nil {
		return err
	}
	h, err := etcpak.ParseHeader(data)
	if err != nil {
		return err
	}
	fmt.Println(h.String())
	return nil
}

func runView(input, output string) error {
	data, err := readTexture(input)
	if err != nil {
		return err
	}
	_, levels, err := etcpak.DecodeTexture(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", input, err)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	img := levels[0].ToNRGBA()
	if strings.EqualFold(filepath.Ext(output), ".bmp") {
		err = bmp.Encode(f, img)
	} else {
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	return f.Close()
}

func benchDecode(input string) error {
	data, err := readTexture(input)
	if err != nil {
		return err
	}
	h, err := etcpak.ParseHeader(data)
	if err != nil {
		return err
	}
	blocks := data[h.DataOffset:]

	median, err := medianRun(func() error {
		_, err := etcpak.DecodeImage(h.Format, blocks, h.Width, h.Height)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Median decode time for %d runs: %0.3f ms (%0.3f Mpx/s)\n",
		benchRuns, ms(median), mpxPerSec(h.Width*h.Height, median))
	return nil
}

func benchEncode(ctx context.Context, o *options, cfg etcpak.Config, img *etcpak.Image) error {
	if !o.benchMT {
		cfg.Workers = 1
	}
	enc, err := etcpak.NewEncoder(nil, cfg)
	if err != nil {
		return err
	}
	median, err := medianRun(func() error {
		_, err := enc.EncodeImage(ctx, img)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Median compression time for %d runs: %0.3f ms (%0.3f Mpx/s)",
		benchRuns, ms(median), mpxPerSec(img.Width*img.Height, median))
	if o.benchMT {
		fmt.Printf(" multi threaded (%d cores)\n", cfg.Workers)
	} else {
		fmt.Println(" single threaded")
	}
	return nil
}

func medianRun(fn func() error) (time.Duration, error) {
	var times [benchRuns]time.Duration
	for i := range times {
		start := time.Now()
		if err := fn(); err != nil {
			return 0, err
		}
		times[i] = time.Since(start)
	}
	slices.Sort(times[:])
	return times[benchRuns/2], nil
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func mpxPerSec(pixels int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(pixels) / d.Seconds() / 1e6
}

type progressBar struct {
	enabled bool
}

func newProgressBar() *progressBar {
	return &progressBar{enabled: term.IsTerminal(int(os.Stderr.Fd()))}
}

func (p *progressBar) update(pct float32) {
	if p.enabled {
		fmt.Fprintf(os.Stderr, "\r%5.1f%%", pct)
	}
}

func (p *progressBar) finish() {
	if p.enabled {
		fmt.Fprintln(os.Stderr)
	}
}
