package service

import "stillmind/internal/model"

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastCounts(counts model.PresenceCounts)
}
