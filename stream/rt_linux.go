//go:build linux

package stream

import "golang.org/x/sys/unix"

// setScheduler puts the calling thread on SCHED_FIFO. Needs CAP_SYS_NICE or
// an rtprio rlimit; the sampler treats refusal as a warning.
func setScheduler(priority int) error {
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}

// pinCPU restricts the calling thread to a single processor.
func pinCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
