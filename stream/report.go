package stream

import (
	"fmt"
	"strings"

	"github.com/attoscope/eccstream/ecc"
)

// buildReport renders the multi-line STATUS snapshot. Layout kept stable
// because operators grep it.
func (d *Dispatcher) buildReport() string {
	snap := d.state.Snapshot(d.ring.Available(), d.ring.Cap())

	var b strings.Builder
	b.WriteString("=== ECC100 MQTT System Status ===\n")
	fmt.Fprintf(&b, "MQTT Connected: %s\n", yesNo(snap.BusUp))
	fmt.Fprintf(&b, "Controllers Connected: %s\n", yesNo(snap.ControllersUp))
	fmt.Fprintf(&b, "Sample Rate: %d Hz\n", snap.RateHz)
	fmt.Fprintf(&b, "Total Captured: %d\n", snap.Captured)
	fmt.Fprintf(&b, "Total Published: %d\n", snap.Published)
	fmt.Fprintf(&b, "Total Dropped: %d\n", snap.Dropped)
	fmt.Fprintf(&b, "Buffer Usage: %d/%d\n\n", snap.RingUsed, snap.RingCap)

	for _, c := range d.controllers {
		fmt.Fprintf(&b, "Controller %d (ID=%d)\n", c.Slot, c.ID)
		fmt.Fprintf(&b, "  Firmware Version: %s\n", c.Firmware)

		for axis := 0; axis < ecc.NumAxes; axis++ {
			if !c.Axes[axis] {
				continue
			}
			d.writeAxisReport(&b, c, axis)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

func (d *Dispatcher) writeAxisReport(b *strings.Builder, c ControllerInfo, axis int) {
	name := d.topo.Name(c.Slot, axis)
	fmt.Fprintf(b, "  Axis %d (%s):", axis, name)

	if pos, err := c.Device.Position(axis); err == nil {
		fmt.Fprintf(b, " %d", pos)
		if at, err := c.Device.ActorType(axis); err == nil {
			fmt.Fprintf(b, " %s [%s]", at.Units(), at)
		}
		if an, err := c.Device.ActorName(axis); err == nil && an != "" {
			fmt.Fprintf(b, " (%s)", an)
		}
	}
	b.WriteByte('\n')

	if amp, err := c.Device.Amplitude(axis); err == nil {
		fmt.Fprintf(b, "    Amplitude: %d mV\n", amp)
	}
	if freq, err := c.Device.Frequency(axis); err == nil {
		fmt.Fprintf(b, "    Frequency: %d mHz\n", freq)
	}
	if rng, err := c.Device.TargetRange(axis); err == nil {
		fmt.Fprintf(b, "    Target Range: %d nm/µ°\n", rng)
	}

	st, err := c.Device.Status(axis)
	if err != nil {
		b.WriteByte('\n')
		return
	}

	fmt.Fprintf(b, "    Reference Valid: %s", yesNo(st.RefValid))
	if st.RefValid {
		if ref, err := c.Device.ReferencePosition(axis); err == nil {
			fmt.Fprintf(b, " (Position: %d)", ref)
		}
	}
	b.WriteByte('\n')

	fmt.Fprintf(b, "    Moving Status: %s\n", st.Moving)
	fmt.Fprintf(b, "    In Target Range: %s\n", yesNo(st.InTarget))
	fmt.Fprintf(b, "    EOT Forward: %s\n", eotString(st.EotFwd))
	fmt.Fprintf(b, "    EOT Backward: %s\n", eotString(st.EotBkwd))
	b.WriteByte('\n')
}

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func eotString(v bool) string {
	if v {
		return "DETECTED"
	}
	return "Clear"
}
