package telemetry

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/attoscope/eccstream/topology"
)

func TestAppendRecord(t *testing.T) {
	Convey("a fully valid record encodes all four positions", t, func() {
		s := Sample{TimestampNS: 1735689123457789000}
		s.Store(topology.X, 999730)
		s.Store(topology.Y, -120040)
		s.Store(topology.Z, -224330)
		s.Store(topology.R, -600530)

		out := AppendRecord(nil, s)
		So(string(out), ShouldEqual, "1735689123457789000/999730/-120040/-224330/-600530")
	})

	Convey("invalid fields encode as NaN, timestamp always present", t, func() {
		s := Sample{TimestampNS: 42}
		s.Store(topology.X, 999730)
		s.Store(topology.Z, -224330)
		s.Store(topology.R, -600530)

		out := AppendRecord(nil, s)
		So(string(out), ShouldEqual, "42/999730/NaN/-224330/-600530")
	})

	Convey("an all-invalid record still carries its timestamp", t, func() {
		out := AppendRecord(nil, Sample{TimestampNS: 7})
		So(string(out), ShouldEqual, "7/NaN/NaN/NaN/NaN")
	})

	Convey("zero positions are distinguishable from invalid ones", t, func() {
		s := Sample{TimestampNS: 1}
		s.Store(topology.Y, 0)

		out := AppendRecord(nil, s)
		So(string(out), ShouldEqual, "1/NaN/0/NaN/NaN")
	})

	Convey("appending reuses the destination buffer", t, func() {
		buf := make([]byte, 0, BatchCap(1))
		out := AppendRecord(buf, Sample{TimestampNS: 9})
		So(cap(out), ShouldEqual, cap(buf))
	})
}

func TestAppendBatch(t *testing.T) {
	Convey("records join with single newlines, no trailing separator", t, func() {
		batch := []Sample{
			{TimestampNS: 1},
			{TimestampNS: 2},
			{TimestampNS: 3},
		}

		out := AppendBatch(nil, batch)
		So(string(out), ShouldEqual, "1/NaN/NaN/NaN/NaN\n2/NaN/NaN/NaN/NaN\n3/NaN/NaN/NaN/NaN")
	})

	Convey("an empty batch encodes to nothing", t, func() {
		So(len(AppendBatch(nil, nil)), ShouldEqual, 0)
	})
}

func TestSampleField(t *testing.T) {
	Convey("Field mirrors Store", t, func() {
		var s Sample
		s.Store(topology.Z, -5)

		v, ok := s.Field(topology.Z)
		So(ok, ShouldBeTrue)
		So(v, ShouldEqual, -5)

		_, ok = s.Field(topology.X)
		So(ok, ShouldBeFalse)
		So(s.ValidMask, ShouldEqual, topology.Z.Bit())
	})
}
