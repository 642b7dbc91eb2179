package etcpak_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfpld/etcpak/etcpak"
)

func TestConfigInit_Presets(t *testing.T) {
	cases := []struct {
		quality    etcpak.EncodeQuality
		partitions int
		uber       int
		filterbank bool
	}{
		{etcpak.EncodeFast, 16, 0, true},
		{etcpak.EncodeMedium, 64, 0, true},
		{etcpak.EncodeThorough, 64, 1, true},
		{etcpak.EncodeExhaustive, 64, 4, false},
	}
	for _, c := range cases {
		cfg, err := etcpak.ConfigInit(etcpak.FormatBC7, c.quality)
		require.NoError(t, err, c.quality.String())
		require.Equal(t, c.partitions, cfg.BC7.MaxPartitions, c.quality.String())
		require.Equal(t, c.uber, cfg.BC7.UberLevel, c.quality.String())
		require.Equal(t, c.filterbank, cfg.BC7.PartitionFilterbank, c.quality.String())
		require.True(t, cfg.Heuristics)
		require.False(t, cfg.Dither)
		require.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	}

	_, err := etcpak.ConfigInit(etcpak.FormatETC1, etcpak.EncodeQuality(9))
	require.Equal(t, etcpak.ErrBadConfig, etcpak.ErrorCodeOf(err))
}

func TestParseQuality(t *testing.T) {
	for _, q := range []etcpak.EncodeQuality{etcpak.EncodeFast, etcpak.EncodeMedium, etcpak.EncodeThorough, etcpak.EncodeExhaustive} {
		got, err := etcpak.ParseQuality(q.String())
		require.NoError(t, err)
		require.Equal(t, q, got)
	}
	_, err := etcpak.ParseQuality("ludicrous")
	require.Equal(t, etcpak.ErrBadConfig, etcpak.ErrorCodeOf(err))
}

func TestBC7ModeMaskValidation(t *testing.T) {
	cases := []struct {
		name string
		mask uint32
		part int
		ok   bool
	}{
		{"all", etcpak.BC7ModeMaskAll, 64, true},
		{"mode 6 only", 1 << 6, 64, true},
		{"modes 1 and 5", 1<<1 | 1<<5, 64, true},
		{"mode 1 without partitions", 1<<1 | 1<<5, 0, false},
		{"no alpha mode", 1 << 1, 64, false},
		{"no opaque mode", 1<<5 | 1<<7, 64, false},
		{"empty", 0, 64, false},
	}
	for _, c := range cases {
		cfg, err := etcpak.ConfigInit(etcpak.FormatBC7, etcpak.EncodeMedium)
		require.NoError(t, err)
		cfg.BC7.ModeMask = c.mask
		cfg.BC7.MaxPartitions = c.part
		_, err = etcpak.NewEncoder(nil, cfg)
		if c.ok {
			require.NoError(t, err, c.name)
		} else {
			require.Equal(t, etcpak.ErrBadConfig, etcpak.ErrorCodeOf(err), c.name)
		}
	}
}

func TestBC7ModeSubsetsStillEncode(t *testing.T) {
	src := gradientTile()
	src[3].A = 100
	for _, mask := range []uint32{1 << 6, 1<<1 | 1<<5, 1<<1 | 1<<7 | 1<<6} {
		cfg, err := etcpak.ConfigInit(etcpak.FormatBC7, etcpak.EncodeMedium)
		require.NoError(t, err)
		cfg.BC7.ModeMask = mask
		block := make([]byte, 16)
		require.NoError(t, etcpak.DefaultContext().EncodeBlock(&cfg, src, block))
		var out etcpak.Tile
		require.NoError(t, etcpak.DecodeBlock(etcpak.FormatBC7, block, &out))
		require.Less(t, channelMSE(src, &out, 0, 1, 2, 3), 64.0, "mask %#x", mask)
	}
}

func TestParseConfigYAML(t *testing.T) {
	base, err := etcpak.ConfigInit(etcpak.FormatETC1, etcpak.EncodeMedium)
	require.NoError(t, err)

	cfg, err := etcpak.ParseConfigYAML([]byte(`
format: bc7
quality: thorough
dither: true
workers: 3
bc7:
  max_partitions: 200
  perceptual: false
  mode_mask: 64
  mode6_error_weight: 0.5
`), base)
	require.NoError(t, err)
	require.Equal(t, etcpak.FormatBC7, cfg.Format)
	require.Equal(t, etcpak.EncodeThorough, cfg.Quality)
	require.True(t, cfg.Dither)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, 64, cfg.BC7.MaxPartitions)
	require.Equal(t, 1, cfg.BC7.UberLevel)
	require.False(t, cfg.BC7.Perceptual)
	require.Equal(t, [4]uint32{1, 1, 1, 1}, cfg.BC7.Weights)
	require.Equal(t, uint32(64), cfg.BC7.ModeMask)
	require.Equal(t, float32(0.5), cfg.BC7.Mode6ErrorWeight)
}

func TestParseConfigYAML_KeepsBase(t *testing.T) {
	base, err := etcpak.ConfigInit(etcpak.FormatBC1, etcpak.EncodeFast)
	require.NoError(t, err)
	base.Dither = true

	cfg, err := etcpak.ParseConfigYAML(nil, base)
	require.NoError(t, err)
	require.Equal(t, etcpak.FormatBC1, cfg.Format)
	require.True(t, cfg.Dither)

	cfg, err = etcpak.ParseConfigYAML([]byte("heuristics: false\n"), base)
	require.NoError(t, err)
	require.False(t, cfg.Heuristics)
	require.True(t, cfg.Dither)
}

func TestParseConfigYAML_Errors(t *testing.T) {
	base, err := etcpak.ConfigInit(etcpak.FormatBC7, etcpak.EncodeMedium)
	require.NoError(t, err)

	for name, doc := range map[string]string{
		"unknown key":   "colour: red\n",
		"bad format":    "format: pvrtc\n",
		"bad quality":   "quality: ultra\n",
		"short weights": "bc7:\n  weights: [1, 2]\n",
		"bad mask":      "bc7:\n  mode_mask: 2\n  max_partitions: 0\n",
		"neg workers":   "workers: -2\n",
		"not yaml":      "format: [\n",
	} {
		_, err := etcpak.ParseConfigYAML([]byte(doc), base)
		require.Error(t, err, name)
		require.Contains(t, []etcpak.ErrorCode{etcpak.ErrBadConfig, etcpak.ErrBadFormat}, etcpak.ErrorCodeOf(err), name)
	}
}
