package etcpak

import (
	"fmt"
	"runtime"
	"strings"
)

// EncodeQuality selects how much search the encoders spend per block. Only
// BC7 has tunable search; the other formats ignore it.
type EncodeQuality uint8

const (
	EncodeFast EncodeQuality = iota
	EncodeMedium
	EncodeThorough
	EncodeExhaustive
)

var qualityNames = [...]string{
	EncodeFast:       "fast",
	EncodeMedium:     "medium",
	EncodeThorough:   "thorough",
	EncodeExhaustive: "exhaustive",
}

func (q EncodeQuality) String() string {
	if int(q) >= len(qualityNames) {
		return fmt.Sprintf("EncodeQuality(%d)", uint8(q))
	}
	return qualityNames[q]
}

// ParseQuality maps a quality name (case-insensitive) to an EncodeQuality.
func ParseQuality(s string) (EncodeQuality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for q, name := range qualityNames {
		if s == name {
			return EncodeQuality(q), nil
		}
	}
	return 0, newError(ErrBadConfig, fmt.Sprintf("etcpak: unknown quality %q", s))
}

// BC7ModeMaskAll enables every mode the encoder implements (1, 5, 6 and 7).
const BC7ModeMaskAll = 0xFF

// BC7Params tunes the BC7 encoder.
type BC7Params struct {
	// ModeMask has bit n set when mode n may be used.
	ModeMask uint32

	// MaxPartitions bounds the partition search for modes 1 and 7 (0..64).
	// Zero disables mode 1.
	MaxPartitions int

	// UberLevel (0..4) controls selector perturbation around the best fit.
	UberLevel int

	TryLeastSquares     bool
	PartitionFilterbank bool

	// Perceptual measures error in a luma/chroma space with Weights as
	// Y, Cr, Cb, A weights; otherwise Weights apply to R, G, B, A.
	Perceptual bool
	Weights    [4]uint32

	// ForceAlpha routes opaque blocks through the alpha modes.
	ForceAlpha bool

	QuantMode6Endpoints bool
	BiasMode1PBits      bool
	PBit1Weight         float32

	Mode1ErrorWeight float32
	Mode5ErrorWeight float32
	Mode6ErrorWeight float32
	Mode7ErrorWeight float32
}

var (
	perceptualBC7Weights = [4]uint32{128, 64, 16, 32}
	linearBC7Weights     = [4]uint32{1, 1, 1, 1}
)

// DefaultBC7Params returns perceptual-mode defaults with the full partition
// search.
func DefaultBC7Params() BC7Params {
	return BC7Params{
		ModeMask:            BC7ModeMaskAll,
		MaxPartitions:       64,
		TryLeastSquares:     true,
		PartitionFilterbank: true,
		Perceptual:          true,
		Weights:             perceptualBC7Weights,
		PBit1Weight:         1,
		Mode1ErrorWeight:    1,
		Mode5ErrorWeight:    1,
		Mode6ErrorWeight:    1,
		Mode7ErrorWeight:    1,
	}
}

// SetPerceptual switches the error metric and resets Weights to the
// defaults for that metric.
func (p *BC7Params) SetPerceptual(on bool) {
	p.Perceptual = on
	if on {
		p.Weights = perceptualBC7Weights
	} else {
		p.Weights = linearBC7Weights
	}
}

// Config controls a compression run.
type Config struct {
	Format  Format
	Quality EncodeQuality

	// Dither applies error diffusion toward the RGB565 grid before encoding.
	// It is honored for ETC1, BC1 and BC3 only.
	Dither bool

	// Heuristics lets the ETC2 encoder skip the T and H modes for
	// low-contrast blocks that planar or ETC1 already fit closely.
	Heuristics bool

	// Workers is the number of goroutines the image driver may use. Zero
	// means runtime.GOMAXPROCS(0).
	Workers int

	BC7 BC7Params

	ProgressCallback func(progress float32)
}

type qualityPreset struct {
	maxPartitions int
	uberLevel     int
	filterbank    bool
}

var qualityPresets = [...]qualityPreset{
	EncodeFast:       {16, 0, true},
	EncodeMedium:     {64, 0, true},
	EncodeThorough:   {64, 1, true},
	EncodeExhaustive: {64, 4, false},
}

// ConfigInit returns a validated Config for format at the given quality.
func ConfigInit(format Format, quality EncodeQuality) (Config, error) {
	if !format.Valid() {
		return Config{}, newError(ErrBadFormat, "etcpak: invalid format")
	}
	if int(quality) >= len(qualityPresets) {
		return Config{}, newError(ErrBadConfig, "etcpak: invalid quality")
	}

	cfg := Config{
		Format:     format,
		Quality:    quality,
		Heuristics: true,
		BC7:        DefaultBC7Params(),
	}
	p := qualityPresets[quality]
	cfg.BC7.MaxPartitions = p.maxPartitions
	cfg.BC7.UberLevel = p.uberLevel
	cfg.BC7.PartitionFilterbank = p.filterbank

	if err := validateAndClampConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateAndClampConfig(cfg *Config) error {
	if cfg == nil {
		return newError(ErrBadParam, "etcpak: nil config")
	}
	if !cfg.Format.Valid() {
		return newError(ErrBadFormat, "etcpak: invalid format")
	}
	if int(cfg.Quality) >= len(qualityPresets) {
		return newError(ErrBadConfig, "etcpak: invalid quality")
	}
	if cfg.Workers < 0 {
		return newError(ErrBadConfig, "etcpak: negative worker count")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	if cfg.Format != FormatBC7 {
		return nil
	}
	p := &cfg.BC7
	p.MaxPartitions = clampInt(p.MaxPartitions, 0, 64)
	p.UberLevel = clampInt(p.UberLevel, 0, 4)

	// Every block must have at least one usable mode, opaque or not.
	opaqueOK := p.ModeMask&(1<<6) != 0 || (p.ModeMask&(1<<1) != 0 && p.MaxPartitions > 0)
	alphaOK := p.ModeMask&(1<<5|1<<6|1<<7) != 0
	if !opaqueOK || !alphaOK {
		return newError(ErrBadConfig, "etcpak: BC7 mode mask leaves no usable mode")
	}

	if p.Weights == [4]uint32{} {
		return newError(ErrBadConfig, "etcpak: BC7 weights are all zero")
	}
	for _, w := range []*float32{&p.Mode1ErrorWeight, &p.Mode5ErrorWeight, &p.Mode6ErrorWeight, &p.Mode7ErrorWeight} {
		if *w < 0 {
			return newError(ErrBadConfig, "etcpak: negative BC7 mode error weight")
		}
	}
	if p.PBit1Weight <= 0 {
		p.PBit1Weight = 1
	}
	return nil
}
