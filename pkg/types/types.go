// Package types holds the JSON payloads shared by the HTTP API, the CLI and
// the swagger docs.
package types

// Message is one chat turn as returned to API clients.
type Message struct {
	// example: assistant
	Role string `json:"role" example:"assistant"`
	// Answer text with any thinking block removed.
	// example: Hello! How can I help?
	Content string `json:"content" example:"Hello! How can I help?"`
	// Reasoning trace of thinking models, if any.
	Reasoning string `json:"reasoning,omitempty"`
}
