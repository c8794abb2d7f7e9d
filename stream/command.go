package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/attoscope/eccstream/topology"
)

// The command set is closed and small, so commands parse into a tagged
// value before dispatch: string handling happens exactly once, and the
// switch in the dispatcher stays exhaustive.

type CommandKind int

const (
	CmdStatus CommandKind = iota
	CmdSetRate
	CmdSetAmp
	CmdSetFreq
	CmdMove
	CmdStop
)

func (k CommandKind) String() string {
	switch k {
	case CmdStatus:
		return "STATUS"
	case CmdSetRate:
		return "SET_RATE"
	case CmdSetAmp:
		return "SET_AMP"
	case CmdSetFreq:
		return "SET_FREQ"
	case CmdMove:
		return "MOVE"
	case CmdStop:
		return "STOP"
	}
	return "UNKNOWN"
}

// Command is one parsed bus command.
type Command struct {
	Kind CommandKind

	// Axis is set for SET_AMP, SET_FREQ, MOVE and STOP.
	Axis topology.Axis

	// Value carries the rate (Hz), amplitude (mV), frequency (mHz) or
	// target position depending on Kind.
	Value int32
}

// ParseError carries what the failure result needs: the subject to report
// under and the human detail.
type ParseError struct {
	Subject string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Subject, e.Detail)
}

func invalidFormat(verb string) *ParseError {
	return &ParseError{Subject: verb, Detail: fmt.Sprintf("Invalid %s command format", verb)}
}

// ParseCommand parses the slash-delimited, case-sensitive grammar:
//
//	STATUS
//	SET_RATE/<hz>
//	SET_AMP/<axis>/<mV>
//	SET_FREQ/<axis>/<mHz>
//	MOVE/<axis>/<pos>
//	STOP/<axis>
//
// Range checks (for example the SET_RATE bounds) happen at dispatch, not
// here; parsing is purely structural.
func ParseCommand(raw string) (Command, error) {
	parts := strings.Split(raw, "/")
	verb := parts[0]

	switch verb {
	case "STATUS":
		if len(parts) != 1 {
			return Command{}, invalidFormat(verb)
		}
		return Command{Kind: CmdStatus}, nil

	case "SET_RATE":
		if len(parts) != 2 {
			return Command{}, invalidFormat(verb)
		}
		v, err := parseInt(parts[1])
		if err != nil {
			return Command{}, invalidFormat(verb)
		}
		return Command{Kind: CmdSetRate, Value: v}, nil

	case "SET_AMP", "SET_FREQ":
		if len(parts) != 3 {
			return Command{}, invalidFormat(verb)
		}
		axis, ok := topology.ParseAxis(parts[1])
		if !ok {
			return Command{}, &ParseError{Subject: verb, Detail: "Invalid axis name"}
		}
		v, err := parseInt(parts[2])
		if err != nil {
			return Command{}, invalidFormat(verb)
		}
		kind := CmdSetAmp
		if verb == "SET_FREQ" {
			kind = CmdSetFreq
		}
		return Command{Kind: kind, Axis: axis, Value: v}, nil

	case "MOVE":
		if len(parts) != 3 {
			return Command{}, invalidFormat(verb)
		}
		axis, ok := topology.ParseAxis(parts[1])
		if !ok {
			return Command{}, &ParseError{Subject: verb, Detail: "Invalid axis name"}
		}
		v, err := parseInt(parts[2])
		if err != nil {
			return Command{}, invalidFormat(verb)
		}
		return Command{Kind: CmdMove, Axis: axis, Value: v}, nil

	case "STOP":
		if len(parts) != 2 {
			return Command{}, invalidFormat(verb)
		}
		axis, ok := topology.ParseAxis(parts[1])
		if !ok {
			return Command{}, &ParseError{Subject: verb, Detail: "Invalid axis name"}
		}
		return Command{Kind: CmdStop, Axis: axis}, nil
	}

	return Command{}, &ParseError{Subject: verb, Detail: "Unknown command"}
}

func parseInt(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}
