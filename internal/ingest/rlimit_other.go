//go:build !linux

package ingest

// limitAddressSpace is a no-op where RLIMIT_AS is not enforced; the heap
// watchdog still applies.
func limitAddressSpace(uint64) error {
	return nil
}
