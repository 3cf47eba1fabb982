package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

var nonDigits = regexp.MustCompile(`\D`)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. Inbound conversation text becomes a text event; inbound image
// messages are downloaded and become photo events.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // nil when constructed with a mock sender
	events   chan models.Event
	done     chan struct{}
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client: client,
		events: make(chan models.Event, DefaultChannelBufferSize),
		done:   make(chan struct{}),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient reduces a recipient to bare digits,
// the form the JID user part uses.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	digits := nonDigits.ReplaceAllString(recipient, "")
	if len(digits) < 6 || len(digits) > 15 {
		return "", fmt.Errorf("invalid recipient %q: expected 6-15 digits", recipient)
	}
	return digits, nil
}

// SendMessage sends a message to the given recipient.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonical)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonical)
	return nil
}

// Start registers the event handler on the underlying client.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(ctx, v)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop stops background processing and closes the event channel.
func (s *WhatsAppService) Stop() error {
	close(s.done)
	close(s.events)
	slog.Info("WhatsAppService stopped")
	return nil
}

// Events returns the inbound event channel.
func (s *WhatsAppService) Events() <-chan models.Event {
	return s.events
}

// handleIncomingMessage converts a whatsmeow message event into a
// models.Event and forwards it without blocking the client goroutine.
func (s *WhatsAppService) handleIncomingMessage(ctx context.Context, evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe {
		return
	}

	ev := models.Event{
		UserID: evt.Info.Sender.User,
		Time:   evt.Info.Timestamp.Unix(),
	}

	switch {
	case evt.Message.Conversation != nil:
		ev.Kind = models.EventText
		ev.Text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		ev.Kind = models.EventText
		ev.Text = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.ImageMessage != nil:
		data, err := s.waClient.DownloadImage(ctx, evt.Message.ImageMessage)
		if err != nil {
			slog.Error("WhatsAppService failed to download image", "error", err, "from", ev.UserID)
			return
		}
		ev.Kind = models.EventPhoto
		ev.Photo = data
	default:
		slog.Debug("WhatsAppService ignoring unsupported message type", "from", ev.UserID)
		return
	}

	select {
	case s.events <- ev:
		slog.Debug("WhatsAppService incoming event forwarded", "from", ev.UserID, "kind", ev.Kind)
	case <-s.done:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService events channel blocked, dropping event", "from", ev.UserID, "timeout", DefaultChannelTimeout)
	}
}
