// Package cli parses the snapreview command line.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoSubcommand is returned when no subcommand is provided.
var ErrNoSubcommand = errors.New("missing subcommand: usage: snapreview <list|review|accept|reject|locate|watch> [flags]")

// ErrMissingFlagValue is returned when a flag requires a value but none is provided.
var ErrMissingFlagValue = errors.New("flag requires a value")

// ErrLocateTarget is returned when locate is missing its position.
var ErrLocateTarget = errors.New("locate requires --file and --line")

// ErrDecisionTarget is returned when accept/reject has no target.
var ErrDecisionTarget = errors.New("accept and reject require --snapshot <key> or --all")

// Subcommand represents the CLI subcommand.
type Subcommand string

const (
	SubcommandList   Subcommand = "list"
	SubcommandReview Subcommand = "review"
	SubcommandAccept Subcommand = "accept"
	SubcommandReject Subcommand = "reject"
	SubcommandLocate Subcommand = "locate"
	SubcommandWatch  Subcommand = "watch"
)

// Command represents the parsed CLI input.
type Command struct {
	Subcommand Subcommand

	// Shared flags
	Roots      []string // --root <path>, repeatable
	ConfigPath string   // --config <path>
	JSONOutput bool     // --json
	Strict     bool     // --strict
	LogLevel   string   // --log-level <level>
	LogJSON    bool     // --log-json

	// Decision flags
	Snapshot string // --snapshot <identity key>
	All      bool   // --all
	Delegate bool   // --delegate

	// Locate flags
	File    string // --file <path>
	Line    int    // --line <n>
	Column  int    // --col <n>
	Context int    // --context <n>
}

// ParseArgs parses CLI arguments into a Command. It expects args to
// be os.Args[1:] (excluding the program name).
func ParseArgs(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrNoSubcommand
	}

	sub := Subcommand(args[0])
	switch sub {
	case SubcommandList, SubcommandReview, SubcommandAccept,
		SubcommandReject, SubcommandLocate, SubcommandWatch:
	default:
		return Command{}, ErrNoSubcommand
	}

	cmd := Command{Subcommand: sub}

	i := 1
	next := func() (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%w: %s", ErrMissingFlagValue, args[i])
		}
		i++
		return args[i], nil
	}
	nextInt := func() (int, error) {
		flag := args[i]
		v, err := next()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q", flag, v)
		}
		return n, nil
	}

	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return Command{}, fmt.Errorf("unexpected argument %q", arg)
		}

		var err error
		switch strings.TrimPrefix(arg, "--") {
		case "root":
			var v string
			if v, err = next(); err == nil {
				cmd.Roots = append(cmd.Roots, v)
			}
		case "config":
			cmd.ConfigPath, err = next()
		case "json":
			cmd.JSONOutput = true
		case "strict":
			cmd.Strict = true
		case "log-level":
			cmd.LogLevel, err = next()
		case "log-json":
			cmd.LogJSON = true
		case "snapshot":
			cmd.Snapshot, err = next()
		case "all":
			cmd.All = true
		case "delegate":
			cmd.Delegate = true
		case "file":
			cmd.File, err = next()
		case "line":
			cmd.Line, err = nextInt()
		case "col":
			cmd.Column, err = nextInt()
		case "context":
			cmd.Context, err = nextInt()
		default:
			return Command{}, fmt.Errorf("unknown flag %q", arg)
		}
		if err != nil {
			return Command{}, err
		}
		i++
	}

	switch cmd.Subcommand {
	case SubcommandLocate:
		if cmd.File == "" || cmd.Line == 0 {
			return Command{}, ErrLocateTarget
		}
	case SubcommandAccept, SubcommandReject:
		if cmd.Snapshot == "" && !cmd.All {
			return Command{}, ErrDecisionTarget
		}
	}

	return cmd, nil
}
