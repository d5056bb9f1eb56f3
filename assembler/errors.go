package assembler

import "fmt"

// AssembleError is a fatal assembly-time failure: illegal mnemonic, pool
// overflow, or duplicated label, grounded on original_source/p4_assembler's
// _errorl calls. Unlike a compile-time diagnostic (non-fatal, accumulated),
// an AssembleError aborts assembly immediately.
type AssembleError struct {
	Line int
	Text string
	Msg  string
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("assemble: line %d: %s: %s", e.Line, e.Msg, e.Text)
}
