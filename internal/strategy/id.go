package strategy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewStrategyID returns a unique opaque strategy id. Millisecond
// timestamp plus a random suffix keeps collisions astronomically
// unlikely even across restarts with a skewed clock.
func NewStrategyID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("strategy_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("strategy_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b))
}

// NewRecordID returns a unique id for an execution record.
func NewRecordID() string {
	return "exec_" + uuid.NewString()
}
