package cgparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// Unlimited is the sentinel ConstraintSet fields use for "no limit / inherit
// host" per spec.md's invariant that missing controllers never fail reads.
const Unlimited = math.MaxInt64

var siUnits = map[byte]int64{
	'k': 1 << 10, 'K': 1 << 10,
	'm': 1 << 20, 'M': 1 << 20,
	'g': 1 << 30, 'G': 1 << 30,
	't': 1 << 40, 'T': 1 << 40,
}

// ParseQuantity parses a non-negative integer optionally suffixed with a
// binary unit (k/K/M/G/T), or one of the cgroup "no limit" sentinels: "max"
// (v2) or "-1" (v1). Both sentinels parse to Unlimited.
func ParseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unlimited, nil
	}
	if s == "max" {
		return Unlimited, nil
	}
	if s == "-1" {
		return Unlimited, nil
	}

	mult := int64(1)
	if n := len(s); n > 0 {
		if m, ok := siUnits[s[n-1]]; ok {
			mult = m
			s = s[:n-1]
		}
	}

	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("quantity %q: %w", s, errkind.ErrInvalid)
	}
	if mult != 1 && v > math.MaxInt64/mult {
		return Unlimited, nil
	}
	return v * mult, nil
}

// ParseIntList parses a simple comma-separated decimal integer list, used
// for files like cgroup.procs where no ranges are allowed.
func ParseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("int list %q: %w", s, errkind.ErrInvalid)
		}
		out = append(out, n)
	}
	return out, nil
}
