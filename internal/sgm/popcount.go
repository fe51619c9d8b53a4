package sgm

import (
	"log/slog"
	"math/bits"

	"golang.org/x/sys/cpu"
)

// Hamming distance kernel for census descriptors.
//
// The census cost is the population count of the XOR of two descriptors.
// On amd64 with POPCNT (and on arm64 with ASIMD) math/bits compiles to the
// hardware instruction; elsewhere a byte lookup table avoids the slow
// generic fallback.

// PopcountBackend indicates which population-count path is active.
type PopcountBackend int

const (
	PopcountBackendTable PopcountBackend = iota
	PopcountBackendHardware
)

func (b PopcountBackend) String() string {
	switch b {
	case PopcountBackendHardware:
		return "hardware"
	case PopcountBackendTable:
		return "table"
	default:
		return "unknown"
	}
}

// ActivePopcountBackend reports which backend was selected at startup.
var ActivePopcountBackend PopcountBackend

// hamming32 is the runtime-dispatched Hamming distance for 32-bit
// census descriptors.
var hamming32 func(a, b uint32) uint16

var popcountTable [256]uint8

func init() {
	for i := range popcountTable {
		popcountTable[i] = uint8(bits.OnesCount8(uint8(i)))
	}

	if cpu.X86.HasPOPCNT || cpu.ARM64.HasASIMD {
		ActivePopcountBackend = PopcountBackendHardware
		hamming32 = hammingHardware
		slog.Debug("Hamming kernel initialized", "backend", "hardware")
	} else {
		ActivePopcountBackend = PopcountBackendTable
		hamming32 = hammingTable
		slog.Debug("Hamming kernel initialized", "backend", "table")
	}
}

func hammingHardware(a, b uint32) uint16 {
	return uint16(bits.OnesCount32(a ^ b))
}

func hammingTable(a, b uint32) uint16 {
	x := a ^ b
	return uint16(popcountTable[x&0xFF]) +
		uint16(popcountTable[(x>>8)&0xFF]) +
		uint16(popcountTable[(x>>16)&0xFF]) +
		uint16(popcountTable[(x>>24)&0xFF])
}
