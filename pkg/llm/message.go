package llm

import "strings"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content block types.
const (
	BlockText       = "text"
	BlockImage      = "image"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
	BlockThinking   = "thinking"
)

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks to support multimodal content
// (text, images, tool use, etc.) independently of any dialect.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Type string `json:"type"`

	// Text content (type="text" or type="thinking")
	Text string `json:"text,omitempty"`

	// Image content (type="image"). Exactly one of ImageURL or ImageBase64
	// is expected; ImageURL may itself be a data: URI.
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MediaType   string `json:"media_type,omitempty"`

	// Tool use (type="tool_use") - assistant requesting tool execution
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// Tool result (type="tool_result") - result from tool execution
	ToolResultID string `json:"tool_result_id,omitempty"`
	ToolOutput   string `json:"tool_output,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: BlockText, Text: text},
		},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
func (m *Message) GetText() string {
	var sb strings.Builder
	for _, block := range m.Content {
		if block.Type == BlockText {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

// InlineImage returns the base64 payload of an image block, unwrapping a
// base64 data: URI when the image was given by URL. ok is false when the
// block only references a remote image.
func (b *ContentBlock) InlineImage() (mediaType, data string, ok bool) {
	if b.ImageBase64 != "" {
		return b.MediaType, b.ImageBase64, true
	}

	mt, payload, isData := ParseDataURI(b.ImageURL)
	if !isData {
		return "", "", false
	}
	if mt == "" {
		mt = b.MediaType
	}
	return mt, payload, true
}

// RemoteImage returns the image URL when the block references a non-inline
// image.
func (b *ContentBlock) RemoteImage() (string, bool) {
	if b.ImageBase64 != "" || b.ImageURL == "" {
		return "", false
	}
	if strings.HasPrefix(b.ImageURL, "data:") {
		return "", false
	}
	return b.ImageURL, true
}

// ParseDataURI splits a "data:<media type>;base64,<payload>" URI.
// Only base64 encoded data URIs are accepted.
func ParseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}

	meta, payload, found := strings.Cut(rest, ",")
	if !found || payload == "" {
		return "", "", false
	}

	mt, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return "", "", false
	}

	return mt, payload, true
}

// DataURI builds a base64 data: URI.
func DataURI(mediaType, data string) string {
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	return "data:" + mediaType + ";base64," + data
}

// SniffImageMediaType guesses the media type of base64 image data from its
// leading bytes. It returns "" for unknown formats.
func SniffImageMediaType(data string) string {
	switch {
	case strings.HasPrefix(data, "/9j/"):
		return "image/jpeg"
	case strings.HasPrefix(data, "iVBORw0KGgo"):
		return "image/png"
	case strings.HasPrefix(data, "R0lGOD"):
		return "image/gif"
	case strings.HasPrefix(data, "UklGR"):
		return "image/webp"
	default:
		return ""
	}
}
