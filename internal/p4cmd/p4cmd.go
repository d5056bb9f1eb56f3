// Package p4cmd implements the p4 command-line tool's dispatch and
// subcommands, grounded on github.com/mna/nenuphar's internal/maincmd: a
// flag-tagged Cmd struct parsed by mainer.Parser, a reflection-built
// dispatch table keyed by lowercased method name, and one exported method
// per subcommand with the (ctx, stdio, args) signature buildCmds expects.
package p4cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "p4"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler, assembler and interpreter for the P4 Pascal dialect.

The <command> can be one of:
       compile SOURCE OUT.p4     Compile Pascal source to symbolic P-code.
       assemble SOURCE.p4 OUT    Assemble symbolic P-code and write a text
                                 dump of the code and pool sizes (debug seam).
       run SOURCE.p4             Assemble and interpret symbolic P-code,
                                 writing program output to stdout.
       build SOURCE OUT.p4      Compile then immediately run, printing
                                 diagnostics to stderr and program output
                                 to stdout.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --output FILE             Write run output to FILE instead of
                                 stdout (valid for <run> and <build>).

More information on the p4 repository:
       https://github.com/jensenwirth/p4
`, binName)
)

// Cmd holds one invocation's parsed flags and positional arguments, per
// the donor's maincmd.Cmd shape.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Output  string `flag:"output"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

// Validate resolves the requested subcommand and checks its minimum
// argument count, mirroring maincmd.Cmd.Validate.
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	switch cmdName {
	case "compile", "assemble":
		if len(c.args[1:]) != 2 {
			return fmt.Errorf("%s: expected SOURCE and OUT arguments", cmdName)
		}
	case "run":
		if len(c.args[1:]) != 1 {
			return fmt.Errorf("%s: expected a SOURCE.p4 argument", cmdName)
		}
	case "build":
		if len(c.args[1:]) != 2 {
			return fmt.Errorf("%s: expected SOURCE and OUT arguments", cmdName)
		}
	}
	return nil
}

// Main parses args, resolves the subcommand, and runs it, returning the
// process exit code to use.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}

// buildCmds reflects over v's exported methods, picking the ones shaped
// like a subcommand: (ctx context.Context, stdio mainer.Stdio, args
// []string) error, keyed by lowercased method name.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
