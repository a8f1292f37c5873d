// Package broadcast pushes small JSON notifications to live dashboard connections.
package broadcast

import "time"

// MessageType identifies a push notification.
type MessageType string

const (
	TypeConnected          MessageType = "connected"
	TypeHeartbeat          MessageType = "heartbeat"
	TypeProjectItemUpdated MessageType = "project_item_updated"
)

// Message is one push notification. Only project_item_updated carries the
// webhook fields.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
	Event     string      `json:"event,omitempty"`
	Action    string      `json:"action,omitempty"`
	ItemID    string      `json:"itemId,omitempty"`
	ProjectID string      `json:"projectId,omitempty"`
	Sender    string      `json:"sender,omitempty"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Connected is sent once when a connection opens.
func Connected(now time.Time) Message {
	return Message{Type: TypeConnected, Timestamp: timestamp(now)}
}

// Heartbeat is sent periodically on every open connection.
func Heartbeat(now time.Time) Message {
	return Message{Type: TypeHeartbeat, Timestamp: timestamp(now)}
}

// ProjectItemUpdated signals that a project probably changed upstream.
func ProjectItemUpdated(now time.Time, event, action, itemID, projectID, sender string) Message {
	return Message{
		Type:      TypeProjectItemUpdated,
		Timestamp: timestamp(now),
		Event:     event,
		Action:    action,
		ItemID:    itemID,
		ProjectID: projectID,
		Sender:    sender,
	}
}
