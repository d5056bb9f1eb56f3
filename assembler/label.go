package assembler

// labelState is a numeric label's resolution state, grounded on
// original_source/p4_assembler/p4_assembler.c's ENTERED/DEFINED constants.
type labelState int

const (
	labelEntered labelState = iota // referenced but not yet defined
	labelDefined
)

// label is one entry of labeltab: either the resolved address (once
// defined) or the head of a thread of as-yet-unresolved instruction slots
// that reference it, linked through their own Q fields.
type label struct {
	state labelState
	val   int32 // resolved address once defined; thread head (-1 sentinel) until then
}

// lookup resolves (or begins threading through) a reference to label n,
// grounded on p4_assembler.c's lookup(): a defined label yields its address
// directly; an undefined one yields the previous thread head (so the new
// reference becomes the next link) and records this instruction as the new
// head.
func (a *Assembler) lookup(n int32) int32 {
	lb := a.label(n)
	switch lb.state {
	case labelDefined:
		return lb.val
	default:
		prev := lb.val
		lb.val = int32(a.pc)
		return prev
	}
}

// update resolves label n's definition, grounded on p4_assembler.c's
// update(): walks the thread of forward references recorded by lookup,
// overwriting each with the now-known address, then marks the label
// defined. Re-defining an already-defined label is an error on pass 1; pass
// 2 treats it as a no-op consistency check instead (see DESIGN.md).
func (a *Assembler) update(n int32, value int32, allowRedefine bool) error {
	lb := a.label(n)
	if lb.state == labelDefined {
		if allowRedefine {
			return nil
		}
		return a.errorf("duplicated label")
	}
	if lb.val != -1 {
		curr := lb.val
		for {
			instr := a.code.At(int(curr))
			succ := instr.Q
			instr.Q = value
			a.code.Set(int(curr), instr)
			if succ == -1 {
				break
			}
			curr = succ
		}
	}
	lb.state = labelDefined
	lb.val = value
	return nil
}

func (a *Assembler) label(n int32) *label {
	lb, ok := a.labels[n]
	if !ok {
		lb = &label{val: -1}
		a.labels[n] = lb
	}
	return lb
}
