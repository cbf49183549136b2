package phishguard

import "sync/atomic"

var tabCounter int64

// NextTabID a process wide tab ID
func NextTabID() int64 {
	return atomic.AddInt64(&tabCounter, 1)
}
