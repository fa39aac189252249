package devbpf

import (
	"testing"

	"github.com/cilium/ebpf/asm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectedChecks mirrors the number of comparison instructions matchBlock
// emits for r, used to predict expected offsets without re-implementing the
// assembler.
func expectedChecks(r DeviceRule) int {
	n := 0
	if r.Type != DeviceTypeAny {
		n++
	}
	if r.Access != 0 && r.Access != accessAll {
		n += 3
	}
	if r.Major != wildcard {
		n++
	}
	if r.Minor != wildcard {
		n++
	}
	return n
}

// isConditionalJump reports whether ins is one of the JNE checks the
// assembler emits; it is the only jump opcode matchBlock ever produces.
func isConditionalJump(ins asm.Instruction) bool {
	return ins.OpCode.JumpOp() == asm.JNE
}

func TestAssembleSingleRuleAllChecksJumpPastBlock(t *testing.T) {
	r := DeviceRule{Type: DeviceTypeChar, Access: AccessRead, Major: 5, Minor: 2, Allow: true}
	p := Assemble([]DeviceRule{r})

	block := p.Insns[len(prologue()):]
	checks := expectedChecks(r)
	require.GreaterOrEqual(t, len(block), checks+2)

	blockLen := checks + 2 // checks + Mov + Exit
	block = block[:blockLen]

	jumps := 0
	for i, ins := range block {
		if isConditionalJump(ins) {
			jumps++
			want := int16(blockLen - 1 - i)
			assert.Equal(t, want, ins.Offset, "jump at block index %d", i)
		}
	}
	assert.Greater(t, jumps, 0)
}

func TestAssembleMultipleRulesBlocksAreIndependentlyCorrect(t *testing.T) {
	rules := []DeviceRule{
		{Type: DeviceTypeBlock, Major: 8, Minor: wildcard, Allow: true},
		{Type: DeviceTypeChar, Access: AccessRead | AccessWrite, Major: wildcard, Minor: wildcard, Allow: false},
		{Global: true, Allow: true},
	}
	p := Assemble(rules)
	assert.True(t, p.DefaultPolicy)

	offset := len(prologue())
	for _, r := range rules {
		if r.Global {
			continue
		}
		checks := expectedChecks(r)
		blockLen := checks + 2
		block := p.Insns[offset : offset+blockLen]
		for i, ins := range block {
			if isConditionalJump(ins) {
				want := int16(blockLen - 1 - i)
				assert.Equal(t, want, ins.Offset)
			}
		}
		offset += blockLen
	}
}

func TestAssembleWildcardRuleEmitsNoComparisons(t *testing.T) {
	r := DeviceRule{Type: DeviceTypeAny, Major: wildcard, Minor: wildcard, Allow: true}
	p := Assemble([]DeviceRule{r})

	// prologue + rule block (Mov, Exit) + epilogue (Mov, Exit) = 6 + 2 + 2.
	require.Len(t, p.Insns, len(prologue())+2+2)
}

func TestAssembleGlobalRuleOnlySetsDefaultPolicy(t *testing.T) {
	p := Assemble([]DeviceRule{{Global: true, Allow: true}})
	assert.True(t, p.DefaultPolicy)
	assert.Equal(t, len(prologue())+2, len(p.Insns)) // prologue + epilogue only
}

func TestAssembleFuzzRuleShapesNeverMiscountsOffset(t *testing.T) {
	shapes := []DeviceRule{
		{Type: DeviceTypeAny, Major: wildcard, Minor: wildcard},
		{Type: DeviceTypeBlock, Major: wildcard, Minor: wildcard},
		{Type: DeviceTypeAny, Major: 1, Minor: wildcard},
		{Type: DeviceTypeAny, Major: wildcard, Minor: 1},
		{Type: DeviceTypeAny, Access: AccessRead, Major: wildcard, Minor: wildcard},
		{Type: DeviceTypeChar, Access: AccessRead | AccessMknod, Major: 7, Minor: 3},
	}
	for _, r := range shapes {
		r := r
		p := Assemble([]DeviceRule{r})
		checks := expectedChecks(r)
		blockLen := checks + 2
		block := p.Insns[len(prologue()) : len(prologue())+blockLen]
		for i, ins := range block {
			if isConditionalJump(ins) {
				want := int16(blockLen - 1 - i)
				assert.Equal(t, want, ins.Offset, "rule %+v check at %d", r, i)
			}
		}
	}
}
