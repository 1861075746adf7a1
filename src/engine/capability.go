package engine

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Probe reports whether the host supports the CPU feature the modern
// engine builds are compiled for.
type Probe interface {
	FeatureSupported() bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func() bool

func (f ProbeFunc) FeatureSupported() bool {
	return f()
}

// CPUProbe checks for x86-64-v2 (POPCNT, SSE4.2) on amd64 and NEON on arm64.
// The legacy build is plain x86-64 and needs neither.
type CPUProbe struct{}

func (CPUProbe) FeatureSupported() bool {
	switch runtime.GOARCH {
	case "amd64":
		return cpuid.CPU.X64Level() >= 2
	case "arm64":
		return cpuid.CPU.Supports(cpuid.ASIMD)
	default:
		return false
	}
}
