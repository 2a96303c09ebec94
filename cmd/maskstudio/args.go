package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/example/maskstudio/internal/session"
	"github.com/example/maskstudio/internal/stroke"
)

// splitArgs separates known flags from positional stroke operations so
// flags may appear anywhere on the command line. Values of flags not listed
// in bools are taken from the following argument.
func splitArgs(args []string, fs flagNames, bools flagNames) ([]string, []string, error) {
	var flags []string
	var positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			positionals = append(positionals, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		parts := strings.SplitN(name, "=", 2)
		base := strings.ToLower(parts[0])
		if _, ok := fs[base]; !ok {
			positionals = append(positionals, arg)
			continue
		}
		// Normalise to single dash form for the flag parser.
		norm := "-" + base
		if len(parts) == 2 {
			flags = append(flags, norm+"="+parts[1])
			continue
		}
		if _, ok := bools[base]; ok {
			flags = append(flags, norm)
			continue
		}
		if i+1 >= len(args) {
			return nil, nil, fmt.Errorf("flag %s requires a value", arg)
		}
		flags = append(flags, norm, args[i+1])
		i++
	}
	return flags, positionals, nil
}

type flagNames map[string]struct{}

func names(list ...string) flagNames {
	m := make(flagNames, len(list))
	for _, n := range list {
		m[n] = struct{}{}
	}
	return m
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// strokeOp is one scripted brush stamp.
type strokeOp struct {
	layer  session.Kind
	mode   stroke.Mode
	at     stroke.Point
	radius float64
}

// parseStrokeOps reads operations of the form
//
//	[add|remove] draw|erase X Y [RADIUS]
//
// The layer defaults to add and the radius to defaultRadius.
func parseStrokeOps(tokens []string, defaultRadius float64) ([]strokeOp, error) {
	var ops []strokeOp
	for i := 0; i < len(tokens); {
		op := strokeOp{layer: session.Add, radius: defaultRadius}
		if k, err := session.ParseKind(tokens[i]); err == nil {
			op.layer = k
			i++
			if i >= len(tokens) {
				return nil, fmt.Errorf("%s requires draw or erase", tokens[i-1])
			}
		}
		mode, err := stroke.ParseMode(tokens[i])
		if err != nil {
			return nil, err
		}
		op.mode = mode
		if i+2 >= len(tokens) {
			return nil, fmt.Errorf("%s requires X and Y", tokens[i])
		}
		x, errX := strconv.ParseFloat(tokens[i+1], 64)
		y, errY := strconv.ParseFloat(tokens[i+2], 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("invalid point %q %q", tokens[i+1], tokens[i+2])
		}
		op.at = stroke.Pt(x, y)
		i += 3
		if i < len(tokens) && isNumber(tokens[i]) {
			r, _ := strconv.ParseFloat(tokens[i], 64)
			if r <= 0 {
				return nil, fmt.Errorf("radius must be positive, got %s", tokens[i])
			}
			op.radius = r
			i++
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// readScript returns the whitespace separated tokens of a stroke script.
// Text after # on a line is ignored. "-" reads standard input.
func readScript(path string) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var tokens []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		tokens = append(tokens, strings.Fields(line)...)
	}
	return tokens, sc.Err()
}

// scriptOps gathers operations from the script file, if any, followed by the
// positional arguments.
func scriptOps(script string, positionals []string, defaultRadius float64) ([]strokeOp, error) {
	var tokens []string
	if script != "" {
		t, err := readScript(script)
		if err != nil {
			return nil, fmt.Errorf("read script: %w", err)
		}
		tokens = t
	}
	tokens = append(tokens, positionals...)
	return parseStrokeOps(tokens, defaultRadius)
}

// parseSize reads WIDTHxHEIGHT.
func parseSize(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size must be WIDTHxHEIGHT, got %q", s)
	}
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q", s)
	}
	return width, height, nil
}
