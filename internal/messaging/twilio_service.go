package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/twiliowhatsapp"
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// TwilioService implements Service using the Twilio REST API for
// outbound delivery and an HTTP webhook for inbound messages. Mount
// WebhookHandler on the API server and point the Twilio number's
// incoming message URL at it.
type TwilioService struct {
	client  twiliowhatsapp.Sender
	events  chan models.Event
	done    chan struct{}
	mu      sync.RWMutex
	stopped bool
	// fetchMedia downloads inbound media; swapped out in tests.
	fetchMedia func(ctx context.Context, url string) ([]byte, error)
}

// NewTwilioService creates a TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:     client,
		events:     make(chan models.Event, DefaultChannelBufferSize),
		done:       make(chan struct{}),
		fetchMedia: fetchMediaHTTP,
	}
}

// ValidateAndCanonicalizeRecipient reduces a recipient to bare digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := nonDigits.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op: inbound traffic arrives through the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop marks the service stopped and closes the event channel after a
// short grace period so in-flight webhook handlers can finish emitting.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.events)
	}()
	return nil
}

// SendMessage sends a message via the Twilio API.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

// Events returns the inbound event channel.
func (s *TwilioService) Events() <-chan models.Event {
	return s.events
}

// WebhookHandler handles Twilio's incoming message callback. Text
// bodies become text events; the first attached image becomes a photo
// event.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("TwilioService webhook failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	from, err := s.ValidateAndCanonicalizeRecipient(r.FormValue("From"))
	if err != nil {
		slog.Warn("TwilioService webhook invalid sender", "error", err, "from", r.FormValue("From"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ev := models.Event{UserID: from, Time: time.Now().Unix()}

	numMedia, _ := strconv.Atoi(r.FormValue("NumMedia"))
	if numMedia > 0 && strings.HasPrefix(r.FormValue("MediaContentType0"), "image/") {
		data, fetchErr := s.fetchMedia(r.Context(), r.FormValue("MediaUrl0"))
		if fetchErr != nil {
			slog.Error("TwilioService webhook failed to fetch media", "error", fetchErr, "from", from)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		ev.Kind = models.EventPhoto
		ev.Photo = data
	} else {
		ev.Kind = models.EventText
		ev.Text = r.FormValue("Body")
	}

	s.safeEmit(ev)
	w.WriteHeader(http.StatusOK)
}

// safeEmit forwards an event unless the service is stopped, without
// blocking the webhook handler indefinitely.
func (s *TwilioService) safeEmit(ev models.Event) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Debug("TwilioService dropping event after stop", "from", ev.UserID)
		return
	}

	select {
	case s.events <- ev:
		slog.Debug("TwilioService inbound event forwarded", "from", ev.UserID, "kind", ev.Kind)
	case <-s.done:
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService events channel blocked, dropping event", "from", ev.UserID, "timeout", DefaultChannelTimeout)
	}
}

// fetchMediaHTTP downloads a Twilio-hosted media attachment, capped at
// the photo size limit.
func fetchMediaHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, models.MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	if len(data) > models.MaxPhotoBytes {
		return nil, fmt.Errorf("media exceeds maximum size of %d bytes", models.MaxPhotoBytes)
	}
	return data, nil
}
