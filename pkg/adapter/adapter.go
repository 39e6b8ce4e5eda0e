// Package adapter provides LLM provider clients behind a single
// text-completion interface. Adapters are the only transport the stage
// workers use; they carry no pipeline state and are safe for concurrent use.
package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Complete sends a prompt to the model and returns the raw text reply.
	Complete(ctx context.Context, model string, prompt string) (string, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}
