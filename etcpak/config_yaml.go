package etcpak

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config for option files. Pointer fields distinguish
// "absent" from a zero value so the file only overrides what it names.
type yamlConfig struct {
	Format     string `yaml:"format"`
	Quality    string `yaml:"quality"`
	Dither     *bool  `yaml:"dither"`
	Heuristics *bool  `yaml:"heuristics"`
	Workers    *int   `yaml:"workers"`
	BC7        *struct {
		ModeMask            *uint32  `yaml:"mode_mask"`
		MaxPartitions       *int     `yaml:"max_partitions"`
		UberLevel           *int     `yaml:"uber_level"`
		TryLeastSquares     *bool    `yaml:"try_least_squares"`
		PartitionFilterbank *bool    `yaml:"partition_filterbank"`
		Perceptual          *bool    `yaml:"perceptual"`
		Weights             []uint32 `yaml:"weights"`
		ForceAlpha          *bool    `yaml:"force_alpha"`
		QuantMode6Endpoints *bool    `yaml:"quant_mode6_endpoints"`
		BiasMode1PBits      *bool    `yaml:"bias_mode1_pbits"`
		PBit1Weight         *float32 `yaml:"pbit1_weight"`
		Mode1ErrorWeight    *float32 `yaml:"mode1_error_weight"`
		Mode5ErrorWeight    *float32 `yaml:"mode5_error_weight"`
		Mode6ErrorWeight    *float32 `yaml:"mode6_error_weight"`
		Mode7ErrorWeight    *float32 `yaml:"mode7_error_weight"`
	} `yaml:"bc7"`
}

// ParseConfigYAML builds a Config from a YAML option file. The file's format
// and quality (when present) replace those of base and select a fresh
// preset; every other key overrides the resulting preset. Unknown keys are
// rejected.
func ParseConfigYAML(data []byte, base Config) (Config, error) {
	var y yamlConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, newError(ErrBadConfig, fmt.Sprintf("etcpak: config: %v", err))
	}

	cfg := base
	if y.Format != "" || y.Quality != "" {
		format, quality := base.Format, base.Quality
		var err error
		if y.Format != "" {
			if format, err = ParseFormat(y.Format); err != nil {
				return Config{}, err
			}
		}
		if y.Quality != "" {
			if quality, err = ParseQuality(y.Quality); err != nil {
				return Config{}, err
			}
		}
		preset, err := ConfigInit(format, quality)
		if err != nil {
			return Config{}, err
		}
		preset.Dither, preset.Heuristics = base.Dither, base.Heuristics
		preset.Workers, preset.ProgressCallback = base.Workers, base.ProgressCallback
		cfg = preset
	}

	setIf(&cfg.Dither, y.Dither)
	setIf(&cfg.Heuristics, y.Heuristics)
	setIf(&cfg.Workers, y.Workers)

	if b := y.BC7; b != nil {
		p := &cfg.BC7
		if b.Perceptual != nil {
			p.SetPerceptual(*b.Perceptual)
		}
		if b.Weights != nil {
			if len(b.Weights) != 4 {
				return Config{}, newError(ErrBadConfig, "etcpak: config: bc7.weights needs four values")
			}
			copy(p.Weights[:], b.Weights)
		}
		setIf(&p.ModeMask, b.ModeMask)
		setIf(&p.MaxPartitions, b.MaxPartitions)
		setIf(&p.UberLevel, b.UberLevel)
		setIf(&p.TryLeastSquares, b.TryLeastSquares)
		setIf(&p.PartitionFilterbank, b.PartitionFilterbank)
		setIf(&p.ForceAlpha, b.ForceAlpha)
		setIf(&p.QuantMode6Endpoints, b.QuantMode6Endpoints)
		setIf(&p.BiasMode1PBits, b.BiasMode1PBits)
		setIf(&p.PBit1Weight, b.PBit1Weight)
		setIf(&p.Mode1ErrorWeight, b.Mode1ErrorWeight)
		setIf(&p.Mode5ErrorWeight, b.Mode5ErrorWeight)
		setIf(&p.Mode6ErrorWeight, b.Mode6ErrorWeight)
		setIf(&p.Mode7ErrorWeight, b.Mode7ErrorWeight)
	}

	if err := validateAndClampConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
