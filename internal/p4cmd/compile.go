package p4cmd

import (
	"context"
	"io"
	"os"

	"github.com/mna/mainer"

	"github.com/jensenwirth/p4/parser"
)

// readSource reads path, or stdin when path is "-".
func readSource(stdio mainer.Stdio, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdio.Stdin)
	}
	return os.ReadFile(path)
}

// Compile implements `p4 compile SOURCE OUT.p4`: parses and compiles
// Pascal source into symbolic P-code, per spec §6.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	src, err := readSource(stdio, args[0])
	if err != nil {
		return err
	}
	code, err := parser.Compile(args[0], src)
	if err != nil {
		return err
	}
	return os.WriteFile(args[1], []byte(code), 0o644)
}
