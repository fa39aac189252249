// Package cgparse parses the small numeric and list formats cgroup
// controller files use: cpuset ranges, byte quantities with SI-ish suffixes,
// and the v1/v2 "unlimited" sentinels.
package cgparse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/k3s-io/cgroupfs/internal/errkind"
)

// CPUSet is an ordered, deduplicated set of logical CPU ids.
type CPUSet []int

// ParseCPUSet parses a cpuset.cpus-style string: comma separated tokens,
// each either "N" or "A-B" with A <= B. An empty string is the empty set.
func ParseCPUSet(s string) (CPUSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CPUSet{}, nil
	}

	seen := make(map[int]struct{})
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if dash := strings.IndexByte(tok, '-'); dash >= 0 {
			lo, err := strconv.Atoi(tok[:dash])
			if err != nil {
				return nil, fmt.Errorf("cpuset token %q: %w", tok, errkind.ErrInvalid)
			}
			hi, err := strconv.Atoi(tok[dash+1:])
			if err != nil {
				return nil, fmt.Errorf("cpuset token %q: %w", tok, errkind.ErrInvalid)
			}
			if lo < 0 || hi < lo {
				return nil, fmt.Errorf("cpuset token %q: %w", tok, errkind.ErrInvalid)
			}
			for i := lo; i <= hi; i++ {
				seen[i] = struct{}{}
			}
		} else {
			n, err := strconv.Atoi(tok)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("cpuset token %q: %w", tok, errkind.ErrInvalid)
			}
			seen[n] = struct{}{}
		}
	}

	out := make(CPUSet, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// Canonicalize renders a CPUSet back to its minimal comma/range string form,
// e.g. {0,1,2,5} -> "0-2,5". parse(canonicalize(parse(s))) == parse(s).
func (c CPUSet) Canonicalize() string {
	if len(c) == 0 {
		return ""
	}
	sorted := append(CPUSet(nil), c...)
	sort.Ints(sorted)

	var b strings.Builder
	start := sorted[0]
	prev := sorted[0]
	flush := func(end int) {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == end {
			fmt.Fprintf(&b, "%d", start)
		} else {
			fmt.Fprintf(&b, "%d-%d", start, end)
		}
	}
	for _, id := range sorted[1:] {
		if id == prev+1 {
			prev = id
			continue
		}
		flush(prev)
		start, prev = id, id
	}
	flush(prev)
	return b.String()
}

// Has reports whether id is a member of the set.
func (c CPUSet) Has(id int) bool {
	for _, v := range c {
		if v == id {
			return true
		}
	}
	return false
}

// Intersect returns the subset of c that is also present in host, preserving
// c's order. Used to drop cgroup cpuset entries that name offline host CPUs.
func Intersect(c, host CPUSet) CPUSet {
	hostSet := make(map[int]struct{}, len(host))
	for _, id := range host {
		hostSet[id] = struct{}{}
	}
	out := make(CPUSet, 0, len(c))
	for _, id := range c {
		if _, ok := hostSet[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
