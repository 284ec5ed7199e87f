package videogen

// Request carries the inputs for one generation call.
type Request struct {
	Prompt       string
	ImageDataURI string
}

// StreamChunk is one decoded event-stream frame. The upstream API is only
// partially specified, so every field an observed response shape might carry
// is optional here.
type StreamChunk struct {
	VideoURL string        `json:"video_url,omitempty"`
	Choices  []ChunkChoice `json:"choices,omitempty"`
}

// ChunkChoice holds either an incremental delta or a complete message.
type ChunkChoice struct {
	Delta   *ChunkMessage `json:"delta,omitempty"`
	Message *ChunkMessage `json:"message,omitempty"`
}

// ChunkMessage is the content payload of a choice. Attachments, media, and
// files are undocumented list shapes some deployments attach to the message.
type ChunkMessage struct {
	Content     string     `json:"content,omitempty"`
	Attachments []MediaRef `json:"attachments,omitempty"`
	Media       []MediaRef `json:"media,omitempty"`
	Files       []MediaRef `json:"files,omitempty"`
}

// MediaRef is a single entry of an attachment-style list.
type MediaRef struct {
	URL string `json:"url,omitempty"`
}
