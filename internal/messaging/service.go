// Package messaging defines the pluggable transport abstraction and the
// router that connects inbound channel traffic to the form stepper.
package messaging

import (
	"context"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

// Constants shared by the transport implementations.
const (
	// DefaultChannelBufferSize defines the default buffer size for the
	// inbound event channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking
	// channel operations.
	DefaultChannelTimeout = 1 * time.Second
)

// Service defines a pluggable message delivery abstraction. A Service
// delivers outbound text to a recipient and surfaces inbound traffic as
// models.Event values on a channel. Transports only classify events as
// text or photo; mapping text onto selections is the router's job.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Returns the canonicalized recipient and an
	// error if validation fails. This allows each service to implement
	// its own recipient validation rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (e.g., registering event
	// handlers or webhook listeners).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of inbound user events.
	Events() <-chan models.Event
}
