package inspection

import (
	"time"

	"github.com/google/uuid"
)

// Clock stamps submissions and receipts.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names receipts. Receipt IDs double as archive object names.
type IDGenerator interface {
	New() string
}

// UUIDGenerator names receipts with random (v4) UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
