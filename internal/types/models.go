package types

// GenerationRequest describes one video generation. Immutable once built:
// the gateway and its workers only ever read it.
type GenerationRequest struct {
	Prompt       string  `json:"prompt"`
	ImageDataURI string  `json:"image_data_uri"`
	UserID       string  `json:"user_id"`
	GroupID      string  `json:"group_id,omitempty"`
	ChatKey      ChatKey `json:"chat_key"`
}

// Artifact is a resolved generation result. LocalPath is set only when the
// video was downloaded to the local store.
type Artifact struct {
	ID        ArtifactID `json:"id"`
	RemoteURL string     `json:"remote_url"`
	LocalPath string     `json:"local_path,omitempty"`
}
