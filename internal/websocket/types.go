package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeRedaction is emitted after each redaction pass
	EventTypeRedaction EventType = "redaction"
	// EventTypeMemoryAlert is emitted on a memory threshold breach
	EventTypeMemoryAlert EventType = "memory_alert"
	// EventTypeSystemStatus carries periodic engine status
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// RedactionEvent summarizes one redaction pass. It carries counts and
// category names only; matched text never leaves the engine.
type RedactionEvent struct {
	AuditID      string   `json:"audit_id"`
	Detections   int      `json:"detections"`
	Redactions   int      `json:"redactions"`
	Categories   []string `json:"categories"`
	Streaming    bool     `json:"streaming"`
	ProcessingMS float64  `json:"processing_ms"`
}

// MemoryAlertEvent reports a memory threshold breach
type MemoryAlertEvent struct {
	Level       string  `json:"level"`
	HeapMB      float64 `json:"heap_mb"`
	AvailableMB float64 `json:"available_mb"`
	Message     string  `json:"message,omitempty"`
}

// SystemStatusEvent carries engine health for dashboards
type SystemStatusEvent struct {
	Status           string  `json:"status"`
	CachedPatterns   int     `json:"cached_patterns"`
	CacheHitRatio    float64 `json:"cache_hit_ratio"`
	ConnectedClients int     `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action   string `json:"action"` // "connected", "disconnected"
	ClientID string `json:"client_id"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
}
