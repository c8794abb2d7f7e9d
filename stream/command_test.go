package stream

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/attoscope/eccstream/topology"
)

func TestParseCommand(t *testing.T) {
	Convey("the six commands parse into typed values", t, func() {
		cmd, err := ParseCommand("STATUS")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdStatus)

		cmd, err = ParseCommand("SET_RATE/2000")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdSetRate)
		So(cmd.Value, ShouldEqual, 2000)

		cmd, err = ParseCommand("SET_AMP/X/45000")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdSetAmp)
		So(cmd.Axis, ShouldEqual, topology.X)
		So(cmd.Value, ShouldEqual, 45000)

		cmd, err = ParseCommand("SET_FREQ/Z/1000000")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdSetFreq)
		So(cmd.Axis, ShouldEqual, topology.Z)
		So(cmd.Value, ShouldEqual, 1000000)

		cmd, err = ParseCommand("MOVE/R/-90000")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdMove)
		So(cmd.Axis, ShouldEqual, topology.R)
		So(cmd.Value, ShouldEqual, -90000)

		cmd, err = ParseCommand("STOP/Y")
		So(err, ShouldBeNil)
		So(cmd.Kind, ShouldEqual, CmdStop)
		So(cmd.Axis, ShouldEqual, topology.Y)
	})

	Convey("malformed commands fail with the offending verb", t, func() {
		cases := map[string]string{
			"SET_RATE":       "SET_RATE",
			"SET_RATE/fast":  "SET_RATE",
			"SET_RATE/1/2":   "SET_RATE",
			"MOVE/X":         "MOVE",
			"MOVE/X/1/2":     "MOVE",
			"MOVE/X/north":   "MOVE",
			"SET_AMP/X":      "SET_AMP",
			"SET_AMP/X/high": "SET_AMP",
			"SET_FREQ/Y":     "SET_FREQ",
			"STOP":           "STOP",
			"STOP/X/0":       "STOP",
			"STATUS/verbose": "STATUS",
		}
		for raw, subject := range cases {
			_, err := ParseCommand(raw)
			So(err, ShouldNotBeNil)
			perr := err.(*ParseError)
			So(perr.Subject, ShouldEqual, subject)
			So(perr.Detail, ShouldEqual, "Invalid "+subject+" command format")
		}
	})

	Convey("bad axis names are reported as such", t, func() {
		for _, raw := range []string{"MOVE/W/100", "MOVE/x/100", "STOP/Q", "SET_AMP/A/1", "SET_FREQ//1"} {
			_, err := ParseCommand(raw)
			So(err, ShouldNotBeNil)
			So(err.(*ParseError).Detail, ShouldEqual, "Invalid axis name")
		}
	})

	Convey("unknown verbs are rejected, case-sensitively", t, func() {
		for _, raw := range []string{"status", "move/X/1", "HALT", ""} {
			_, err := ParseCommand(raw)
			So(err, ShouldNotBeNil)
			So(err.(*ParseError).Detail, ShouldEqual, "Unknown command")
		}
	})

	Convey("range checking is not the parser's job", t, func() {
		cmd, err := ParseCommand("SET_RATE/50")
		So(err, ShouldBeNil)
		So(cmd.Value, ShouldEqual, 50)
	})
}
