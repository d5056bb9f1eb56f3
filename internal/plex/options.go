package plex

import "strings"

// Options mirrors the compiler-option comment switches recognized inline
// in the source (`(*$l+,t-,d+,c+*)`), grounded on
// original_source/p4_lexer/p4_lexer.c's option-letter handling
// (list/table/debug/code toggles) and threaded through the compile call
// per SPEC_FULL.md §4.3/§6. The lexer records the switches; the parser does
// not consult them, so listing, table dumps, chk emission and code output
// do not change with them.
type Options struct {
	ListSource      bool // 'l': echo source lines to the listing
	PrintTables     bool // 't': dump symbol-table contents
	EmitRuntimeChecks bool // 'd': emit chk/chka range checks
	EmitCode        bool // 'c': produce P-code at all (false runs diagnostics-only)
}

// DefaultOptions matches the original's initial switch settings: listing,
// code emission and debug checks on, table dump off.
func DefaultOptions() *Options {
	return &Options{ListSource: true, EmitCode: true, EmitRuntimeChecks: true}
}

// applyOptions parses a comma-separated option-letter list (the body of
// a "$..." comment, with the leading '$' already stripped) and toggles
// the corresponding Options field.
func (l *Lexer) applyOptions(body string) {
	if l.opts == nil {
		return
	}
	for _, part := range splitOptionList(body) {
		if len(part) != 2 {
			continue
		}
		letter, sign := part[0], part[1]
		on := sign == '+'
		if sign != '+' && sign != '-' {
			continue
		}
		switch letter {
		case 'l':
			l.opts.ListSource = on
		case 't':
			l.opts.PrintTables = on
		case 'd':
			l.opts.EmitRuntimeChecks = on
		case 'c':
			l.opts.EmitCode = on
		}
	}
}

func splitOptionList(body string) []string {
	var parts []string
	for _, s := range strings.Split(body, ",") {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
