// Package version pins the SimLink protocol version and the library release.
package version

import (
	"fmt"
)

// Protocol is the protocol version this library speaks. It is exchanged as
// an integer in the Hello message on every new connection; the session is
// refused when the simulator answers with a different value.
const Protocol = 1

// Library is the simlink-go release version.
const Library = "0.3.0"

// MismatchError reports a protocol version disagreement between this library
// and the simulator.
type MismatchError struct {
	Local  int
	Remote int
}

// Error describes the mismatch and both versions.
func (e *MismatchError) Error() string {
	return fmt.Sprintf(
		"mismatching protocol versions: library speaks %d, simulator speaks %d; upgrade whichever side is behind",
		e.Local, e.Remote)
}
