package etcpak

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// Kernel describes the block-average kernel selected for this build, followed
// by the x86 vector extensions the CPU reports (empty on other architectures).
func Kernel() string {
	var feats []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"sse4.1", cpu.X86.HasSSE41},
		{"avx", cpu.X86.HasAVX},
		{"avx2", cpu.X86.HasAVX2},
		{"avx512bw", cpu.X86.HasAVX512BW},
	} {
		if f.ok {
			feats = append(feats, f.name)
		}
	}
	if len(feats) == 0 {
		return kernelName()
	}
	return kernelName() + " (" + strings.Join(feats, ",") + ")"
}
