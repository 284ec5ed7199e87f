// Package types holds the identifiers and data models shared across the
// gateway, delivery, and transport layers.
package types

import (
	"strings"

	"github.com/google/uuid"
)

type ChatKey string
type TaskID string
type ArtifactID string

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

func NewChatKey(parts ...string) ChatKey {
	return ChatKey(strings.Join(parts, ":"))
}
