package ecc

// OpenECC100 returns the Driver backed by the vendor ECC100 shared library.
//
// The binding is linked in by deployments that ship the attocube SDK; this
// build does not carry it, so hardware mode reports the driver as
// unreachable and the daemon exits with a diagnostic. Bench setups run with
// the simulated driver instead (simulated: true in the config file).
func OpenECC100() (Driver, error) {
	return nil, ErrDriverUnreachable
}
