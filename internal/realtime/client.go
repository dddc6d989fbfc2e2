package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/speakwell-backend/internal/platform/logger"
)

// SSEClient is one open event stream. A client receives every message
// broadcast on the channels it is subscribed to.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	closed   sync.Once
	Logger   *logger.Logger
}
