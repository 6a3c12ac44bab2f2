package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bpt-disk-index/bptidx/dbms/bptree"
	"github.com/bpt-disk-index/bptidx/dbms/node"
)

// runREPL reads line commands from in and executes them against the tree.
func runREPL(t *bptree.Tree, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, "Commands:\n")
	fmt.Fprint(out, "  insert <key> <string>\n")
	fmt.Fprint(out, "  delete <key>\n")
	fmt.Fprint(out, "  get <key>\n")
	fmt.Fprint(out, "  range <low> <high>\n")
	fmt.Fprint(out, "  quit\n")

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		cmd, rest := splitCommand(sc.Text())
		switch cmd {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "insert":
			key, valStr, err := splitKey(rest)
			if err != nil {
				fmt.Fprintln(out, "Usage: insert <key> <string>")
				continue
			}
			if err := t.Insert(key, fillValue(valStr)); err != nil {
				fmt.Fprintln(out, "FAIL")
			} else {
				fmt.Fprintln(out, "OK")
			}
		case "delete":
			key, _, err := splitKey(rest)
			if err != nil {
				fmt.Fprintln(out, "Usage: delete <key>")
				continue
			}
			if ok, err := t.Delete(key); err != nil || !ok {
				fmt.Fprintln(out, "FAIL")
			} else {
				fmt.Fprintln(out, "OK")
			}
		case "get":
			key, _, err := splitKey(rest)
			if err != nil {
				fmt.Fprintln(out, "Usage: get <key>")
				continue
			}
			val, err := t.Get(key)
			if err != nil || val == nil {
				fmt.Fprintln(out, "NOT_FOUND")
			} else {
				fmt.Fprintf(out, "VALUE: %s\n", trimValue(val))
			}
		case "range":
			lo, rem, err1 := splitKey(rest)
			hi, _, err2 := splitKey(rem)
			if err1 != nil || err2 != nil {
				fmt.Fprintln(out, "Usage: range <low> <high>")
				continue
			}
			vals, err := t.ReadRange(lo, hi)
			if err != nil {
				fmt.Fprintln(out, "FAIL")
				continue
			}
			fmt.Fprintf(out, "FOUND %d records\n", len(vals))
			for _, v := range vals {
				fmt.Fprintf(out, "  %s\n", trimValue(v))
			}
		default:
			fmt.Fprintln(out, "Unknown command")
		}
	}
	return sc.Err()
}

// splitCommand extracts the command word, ignoring leading whitespace.
func splitCommand(line string) (string, string) {
	trimmed := strings.TrimLeft(line, " \t")
	i := strings.IndexAny(trimmed, " \t")
	if i < 0 {
		return trimmed, ""
	}
	return trimmed[:i], trimmed[i+1:]
}

// splitKey pulls a leading integer token off s. The remainder keeps all but
// one separating space, so inserted strings may carry leading spaces.
func splitKey(s string) (int32, string, error) {
	t := strings.TrimLeft(s, " \t")
	tok, rem := t, ""
	if i := strings.IndexAny(t, " \t"); i >= 0 {
		tok, rem = t[:i], t[i+1:]
	}
	k, err := strconv.ParseInt(tok, 10, 32)
	return int32(k), rem, err
}

// fillValue pads or truncates s to the fixed value width.
func fillValue(s string) []byte {
	buf := make([]byte, node.ValueSize)
	copy(buf, s)
	return buf
}

// trimValue renders a stored value as a string up to its first NUL.
func trimValue(v []byte) string {
	if i := bytes.IndexByte(v, 0); i >= 0 {
		v = v[:i]
	}
	return string(v)
}
