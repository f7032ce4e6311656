package core

import "time"

// rfc3339Milli is the RFC-3339 millisecond-precision UTC format every
// timestamp in this system uses.
const rfc3339Milli = "2006-01-02T15:04:05.000Z"

// nowStamp returns the current instant formatted per rfc3339Milli.
func nowStamp() string {
	return time.Now().UTC().Format(rfc3339Milli)
}
