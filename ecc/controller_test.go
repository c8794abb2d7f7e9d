package ecc

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	. "github.com/smartystreets/goconvey/convey"
)

func openSlot(sim *Sim, slot int) (*Controller, error) {
	infos, err := sim.Enumerate()
	if err != nil {
		return nil, err
	}
	return Open(sim, infos[slot], hclog.NewNullLogger())
}

func TestOpen(t *testing.T) {
	Convey("opening the bench XYZ controller", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		Convey("records slot, id and firmware", func() {
			So(c.Slot(), ShouldEqual, 0)
			So(c.ID(), ShouldEqual, 4)
			So(c.Firmware(), ShouldEqual, "1.6.2")
		})

		Convey("probes all three actors", func() {
			So(c.AxisConnected(0), ShouldBeTrue)
			So(c.AxisConnected(1), ShouldBeTrue)
			So(c.AxisConnected(2), ShouldBeTrue)
			So(c.AxisConnected(3), ShouldBeFalse)
		})

		Convey("enables the drive output on each connected axis", func() {
			for axis := 0; axis < NumAxes; axis++ {
				_, _, _, output := sim.Axis(0, axis)
				So(output, ShouldBeTrue)
			}
		})
	})

	Convey("the rotation controller exposes a single axis", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 1)
		So(err, ShouldBeNil)

		So(c.AxisConnected(0), ShouldBeTrue)
		So(c.AxisConnected(1), ShouldBeFalse)
		So(c.AxisConnected(2), ShouldBeFalse)

		at, err := c.ActorType(0)
		So(err, ShouldBeNil)
		So(at, ShouldEqual, ActorRot)
		So(at.Units(), ShouldEqual, "µ°")
	})

	Convey("a locked controller refuses to open", t, func() {
		sim := NewSimStage(4, 2222)
		sim.Lock(1)

		infos, err := sim.Enumerate()
		So(err, ShouldBeNil)
		So(infos[1].Locked, ShouldBeTrue)

		_, err = openSlot(sim, 1)
		lerr, ok := err.(LockedError)
		So(ok, ShouldBeTrue)
		So(lerr.Slot, ShouldEqual, 1)
		So(lerr.ID, ShouldEqual, 2222)
	})
}

func TestFirmwareGate(t *testing.T) {
	Convey("firmware outside the validated range is rejected", t, func() {
		for _, version := range []string{"0.9.1", "2.0.0", "garbage"} {
			sim := NewSimStage(4, 2222)
			sim.SetFirmware(0, version)

			_, err := openSlot(sim, 0)
			ferr, ok := err.(FirmwareError)
			So(ok, ShouldBeTrue)
			So(ferr.Version, ShouldEqual, version)
			So(ferr.Constraint, ShouldEqual, FIRMWARE_CONSTRAINT)
		}
	})

	Convey("in-range and engineering firmware are accepted", t, func() {
		for _, version := range []string{"1.0.0", "1.6.2", "1.99.0", "DEV"} {
			sim := NewSimStage(4, 2222)
			sim.SetFirmware(0, version)

			_, err := openSlot(sim, 0)
			So(err, ShouldBeNil)
		}
	})
}

func TestMoveCycle(t *testing.T) {
	Convey("an enabled axis converges onto its target", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		start, err := c.Position(0)
		So(err, ShouldBeNil)

		target := start + 3*simStep/2
		So(c.SetTarget(0, target), ShouldBeNil)
		So(c.SetMoveEnable(0, true), ShouldBeNil)

		// Two reads: one full step, then the final partial step.
		pos, err := c.Position(0)
		So(err, ShouldBeNil)
		So(pos, ShouldEqual, start+simStep)

		pos, err = c.Position(0)
		So(err, ShouldBeNil)
		So(pos, ShouldEqual, target)

		st, err := c.Status(0)
		So(err, ShouldBeNil)
		So(st.Moving, ShouldEqual, MoveIdle)
		So(st.InTarget, ShouldBeTrue)
	})

	Convey("disabling movement freezes the axis short of the target", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		start, _ := c.Position(0)
		So(c.SetTarget(0, start+10*simStep), ShouldBeNil)
		So(c.SetMoveEnable(0, true), ShouldBeNil)

		pos, _ := c.Position(0)
		So(pos, ShouldEqual, start+simStep)

		So(c.SetMoveEnable(0, false), ShouldBeNil)
		for i := 0; i < 3; i++ {
			pos, _ = c.Position(0)
		}
		So(pos, ShouldEqual, start+simStep)
	})

	Convey("failing ops surface as DeviceError", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		sim.FailOps(0, 2, true)
		err = c.SetTarget(2, 0)
		derr, ok := err.(DeviceError)
		So(ok, ShouldBeTrue)
		So(derr.Op, ShouldEqual, "SetTarget")
		So(derr.Axis, ShouldEqual, 2)
	})

	Convey("failing reads surface as DeviceError", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		sim.FailReads(0, 1, true)
		_, err = c.Position(1)
		So(err, ShouldNotBeNil)

		sim.FailReads(0, 1, false)
		_, err = c.Position(1)
		So(err, ShouldBeNil)
	})
}

func TestShutdown(t *testing.T) {
	Convey("shutdown disables movement and output on every axis", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		So(c.SetTarget(1, 5000), ShouldBeNil)
		So(c.SetMoveEnable(1, true), ShouldBeNil)

		So(c.Shutdown(), ShouldBeNil)

		for axis := 0; axis < NumAxes; axis++ {
			_, _, moving, output := sim.Axis(0, axis)
			So(moving, ShouldBeFalse)
			So(output, ShouldBeFalse)
		}
	})
}

func TestReset(t *testing.T) {
	Convey("reset invalidates the reference mark", t, func() {
		sim := NewSimStage(4, 2222)
		c, err := openSlot(sim, 0)
		So(err, ShouldBeNil)

		st, _ := c.Status(0)
		So(st.RefValid, ShouldBeTrue)

		So(c.Reset(0), ShouldBeNil)
		st, _ = c.Status(0)
		So(st.RefValid, ShouldBeFalse)
	})
}
