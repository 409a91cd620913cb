package domain

import "time"

// CurrentTimeProvider provides the current time. Injected so use cases can be
// tested with a fixed clock.
type CurrentTimeProvider interface {
	Now() time.Time
}
