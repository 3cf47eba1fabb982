package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/twiliowhatsapp"
)

func postWebhook(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	return rec
}

func TestTwilioWebhookEmitsTextEvent(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postWebhook(t, svc, url.Values{
		"From": {"whatsapp:+6281234567890"},
		"Body": {"SA001"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case ev := <-svc.Events():
		if ev.UserID != "6281234567890" {
			t.Errorf("expected canonical user id, got %q", ev.UserID)
		}
		if ev.Kind != models.EventText || ev.Text != "SA001" {
			t.Errorf("unexpected event: kind=%s text=%q", ev.Kind, ev.Text)
		}
	default:
		t.Fatal("no event emitted")
	}
}

func TestTwilioWebhookEmitsPhotoEvent(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	photo := []byte{0xff, 0xd8, 0xff, 0xe0}
	svc.fetchMedia = func(ctx context.Context, u string) ([]byte, error) {
		if u != "https://api.twilio.com/media/ME123" {
			t.Errorf("unexpected media url %q", u)
		}
		return photo, nil
	}

	rec := postWebhook(t, svc, url.Values{
		"From":              {"whatsapp:+6281234567890"},
		"NumMedia":          {"1"},
		"MediaContentType0": {"image/jpeg"},
		"MediaUrl0":         {"https://api.twilio.com/media/ME123"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case ev := <-svc.Events():
		if ev.Kind != models.EventPhoto || len(ev.Photo) != len(photo) {
			t.Errorf("unexpected event: kind=%s photo_len=%d", ev.Kind, len(ev.Photo))
		}
	default:
		t.Fatal("no event emitted")
	}
}

func TestTwilioWebhookRejectsBadSender(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	rec := postWebhook(t, svc, url.Values{
		"From": {"not-a-number"},
		"Body": {"hello"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTwilioSendAfterStopFails(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "6281234567890", "hi"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
	if len(mock.SentMessages) != 0 {
		t.Errorf("no messages should be sent after stop, got %d", len(mock.SentMessages))
	}
}

func TestTwilioSendMessageCanonicalizes(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	if err := svc.SendMessage(context.Background(), "+62 812-3456-7890", "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 || mock.SentMessages[0].To != "6281234567890" {
		t.Errorf("unexpected sent messages: %+v", mock.SentMessages)
	}
}
