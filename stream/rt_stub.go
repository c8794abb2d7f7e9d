//go:build !linux

package stream

import "errors"

var errNoRT = errors.New("real-time scheduling not supported on this platform")

func setScheduler(priority int) error { return errNoRT }

func pinCPU(cpu int) error { return errNoRT }
