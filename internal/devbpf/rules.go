// Package devbpf assembles and loads the device-cgroup eBPF classifier
// (C6): a BPF_PROG_TYPE_CGROUP_DEVICE program that permits or denies a
// device access attempt based on an ordered list of rules.
package devbpf

import (
	"github.com/cilium/ebpf/asm"
)

// Device kind and access-bit encodings match the kernel's
// bpf_cgroup_dev_ctx / BPF_DEVCG_* uapi constants.
const (
	DeviceTypeAny DeviceType = iota
	DeviceTypeBlock
	DeviceTypeChar
)

// DeviceType constrains which kind of device node a rule applies to.
type DeviceType uint8

func (d DeviceType) kernelValue() int32 {
	switch d {
	case DeviceTypeBlock:
		return 1
	case DeviceTypeChar:
		return 2
	default:
		return 0
	}
}

// Access is a bitmask over read/write/mknod, matching BPF_DEVCG_ACC_*.
type Access uint8

const (
	AccessRead  Access = 1 << 0
	AccessWrite Access = 1 << 1
	AccessMknod Access = 1 << 2
	accessAll   Access = AccessRead | AccessWrite | AccessMknod
)

// wildcard marks Major/Minor as unconstrained.
const wildcard = -1

// DeviceRule is one entry of a device cgroup policy. A rule with Global set
// contributes no instructions to the program; it only sets the default
// policy the epilogue falls back to when no rule matches.
type DeviceRule struct {
	Type   DeviceType
	Access Access // 0 or accessAll means "no mask check emitted"
	Major  int32  // wildcard means "no major check emitted"
	Minor  int32  // wildcard means "no minor check emitted"
	Allow  bool
	Global bool
}

// Program is an assembled classifier: raw instructions ready to load, plus
// the default-policy bit the epilogue encodes (kept alongside for
// diagnostics and tests, not re-derivable from the instructions alone).
type Program struct {
	Insns         asm.Instructions
	DefaultPolicy bool
}

// Context field offsets within struct bpf_cgroup_dev_ctx.
const (
	ctxAccessType = 0
	ctxMajor      = 4
	ctxMinor      = 8
)

// Registers holding the decoded context fields for the lifetime of the
// program; R0 and R1 are reserved by the calling convention (return value
// and the ctx pointer), R6 is scratch for the access-mask check.
const (
	regType    = asm.R2
	regAccess  = asm.R3
	regMajor   = asm.R4
	regMinor   = asm.R5
	regScratch = asm.R6
)

// Assemble builds a classifier program from rules, in order. Non-global
// rules become match blocks; the last global rule (if any) sets the
// default policy, which otherwise defaults to deny.
func Assemble(rules []DeviceRule) *Program {
	defaultPolicy := false
	var active []DeviceRule
	for _, r := range rules {
		if r.Global {
			defaultPolicy = r.Allow
			continue
		}
		active = append(active, r)
	}

	var insns asm.Instructions
	insns = append(insns, prologue()...)
	for _, r := range active {
		insns = append(insns, matchBlock(r)...)
	}
	insns = append(insns, epilogue(defaultPolicy)...)

	return &Program{Insns: insns, DefaultPolicy: defaultPolicy}
}

// prologue decodes the context into regType/regAccess/regMajor/regMinor.
// access_type packs (access << 16 | type) in its low/high halves.
func prologue() asm.Instructions {
	return asm.Instructions{
		asm.LoadMem(regType, asm.R1, ctxAccessType, asm.Word),
		asm.Mov.Reg(regAccess, regType),
		asm.And.Imm(regType, 0xffff),
		asm.Rsh.Imm(regAccess, 16),
		asm.LoadMem(regMajor, asm.R1, ctxMajor, asm.Word),
		asm.LoadMem(regMinor, asm.R1, ctxMinor, asm.Word),
	}
}

// matchBlock builds one rule's comparisons followed by its return value,
// then backpatches every conditional jump's Offset to land exactly on the
// instruction after this block: a two-pass emission where the first pass
// lays out the block and the second computes each jump's skip distance
// from its own position to the block's last instruction.
func matchBlock(r DeviceRule) asm.Instructions {
	var block asm.Instructions
	var jumpIdx []int

	if r.Type != DeviceTypeAny {
		block = append(block, asm.JNE.Imm(regType, r.Type.kernelValue(), ""))
		jumpIdx = append(jumpIdx, len(block)-1)
	}
	if r.Access != 0 && r.Access != accessAll {
		block = append(block,
			asm.Mov.Reg(regScratch, regAccess),
			asm.And.Imm(regScratch, int32(r.Access)),
			asm.JNE.Reg(regScratch, regAccess, ""),
		)
		jumpIdx = append(jumpIdx, len(block)-1)
	}
	if r.Major != wildcard {
		block = append(block, asm.JNE.Imm(regMajor, r.Major, ""))
		jumpIdx = append(jumpIdx, len(block)-1)
	}
	if r.Minor != wildcard {
		block = append(block, asm.JNE.Imm(regMinor, r.Minor, ""))
		jumpIdx = append(jumpIdx, len(block)-1)
	}

	block = append(block, returnInsns(r.Allow)...)

	last := len(block) - 1
	for _, i := range jumpIdx {
		block[i].Offset = int16(last - i)
	}
	return block
}

func epilogue(defaultPolicy bool) asm.Instructions {
	return returnInsns(defaultPolicy)
}

func returnInsns(allow bool) asm.Instructions {
	var v int32
	if allow {
		v = 1
	}
	return asm.Instructions{
		asm.Mov.Imm(asm.R0, v),
		asm.Return(),
	}
}
