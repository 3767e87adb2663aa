package escrow

import "github.com/google/uuid"

// newID returns a collision-resistant random identifier. Wall-clock ids are
// a collision hazard under rapid sequential actions, so ids are random.
func newID() string {
	return uuid.NewString()
}
