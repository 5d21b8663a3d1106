// Package clock is the time source for instance timestamps
package clock

import "time"

// NowFunc is replaced in tests to pin timestamps
var NowFunc = time.Now

// Now returns UTC time at millisecond precision so persisted instances
// compare equal after a JSON round trip.
func Now() time.Time { return NowFunc().UTC().Truncate(time.Millisecond) }
