package form

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/session"
	"github.com/telkomfield/visitbot/internal/validate"
)

// Gateway persists a completed record and its evidence photo. On failure
// the returned message must be safe to show to the end user verbatim.
type Gateway interface {
	Submit(ctx context.Context, rec models.SubmissionRecord) (models.SubmissionResult, error)
}

// Notifier delivers an immediate message to a user ahead of a
// long-latency operation, before the stepper's final prompts are
// returned. A nil notifier folds the acknowledgment into the returned
// prompts instead.
type Notifier interface {
	Notify(ctx context.Context, userID string, prompt models.Prompt) error
}

// User-facing messages that are not tied to a single field.
const (
	msgWelcome      = "Welcome to the visit report bot. What would you like to do?"
	msgStarted      = "Visit report started. Answer each question in turn; you can go back at any step."
	msgCannotBack   = "Cannot go back any further."
	msgKindMismatch = "That input does not match what is expected here. Please answer the question below."
	msgPhotoSaved   = "Photo saved."
	msgProcessing   = "⏳ Saving your report, please wait..."
	msgCancelled    = "Report cancelled. All unsaved data has been discarded."
	msgNotActive    = "No report is in progress."
	msgSystemError  = "A system error occurred. Your report has been reset, please start again."
	msgHelp         = "Start a report, answer every question, and upload an evidence photo at the end. Your answers are saved as one row in the visit log. Use the back option to correct a previous answer."
)

// menuChoices is offered whenever the user is idle.
var menuChoices = []models.Choice{
	{Key: models.TriggerStart, Label: "Start report"},
	{Key: models.TriggerStatus, Label: "Show status"},
	{Key: models.TriggerHelp, Label: "Help"},
}

// Stepper is the form state machine. Each inbound event is validated
// against the session's current step, stored on acceptance, and the
// session advances, rolls back, or submits accordingly.
type Stepper struct {
	plan     *Plan
	sessions session.Store
	gateway  Gateway
	notifier Notifier
}

// NewStepper creates a stepper over the given plan, session store, and
// submission gateway. The notifier may be nil.
func NewStepper(plan *Plan, sessions session.Store, gateway Gateway, notifier Notifier) *Stepper {
	slog.Debug("Creating stepper", "steps", plan.TotalSteps())
	return &Stepper{plan: plan, sessions: sessions, gateway: gateway, notifier: notifier}
}

// Handle processes one inbound event and returns the prompts to deliver
// back to the user. Validation failures never propagate past the current
// step; gateway failures always leave the session restartable.
func (st *Stepper) Handle(ctx context.Context, ev models.Event) ([]models.Prompt, error) {
	if err := ev.Validate(); err != nil {
		slog.Error("Stepper received invalid event", "error", err, "userID", ev.UserID, "kind", ev.Kind)
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	s, err := st.sessions.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		slog.Error("Stepper session lookup failed", "error", err, "userID", ev.UserID)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	prompts, err := st.dispatch(ctx, s, ev)
	if err != nil {
		// Contract errors are fatal for this request only: surface a
		// generic message and force the session back to idle rather than
		// leaving it inconsistent.
		slog.Error("Stepper contract error", "error", err, "userID", ev.UserID, "state", s.State)
		s.Reset()
		if saveErr := st.sessions.Save(ctx, s); saveErr != nil {
			slog.Error("Stepper failed to save reset session", "error", saveErr, "userID", ev.UserID)
		}
		return []models.Prompt{{Text: msgSystemError, Choices: menuChoices}}, nil
	}

	if err := st.sessions.Save(ctx, s); err != nil {
		slog.Error("Stepper failed to save session", "error", err, "userID", ev.UserID, "state", s.State)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return prompts, nil
}

// dispatch routes an event by navigation trigger first, then by session
// state.
func (st *Stepper) dispatch(ctx context.Context, s *session.Session, ev models.Event) ([]models.Prompt, error) {
	if ev.Kind == models.EventSelection {
		switch ev.Selection {
		case models.TriggerStart:
			return st.start(s), nil
		case models.TriggerBack:
			return st.back(s), nil
		case models.TriggerAbort:
			return st.abort(s), nil
		case models.TriggerStatus:
			return st.status(s), nil
		case models.TriggerHelp:
			return []models.Prompt{{Text: msgHelp, Choices: menuChoices}}, nil
		}
	}

	switch s.State {
	case models.StateIdle:
		return []models.Prompt{{Text: msgWelcome, Choices: menuChoices}}, nil
	case models.StateCompleted:
		return st.completed(ctx, s, ev)
	default:
		return st.answer(s, ev)
	}
}

// start (re)initializes the session and asks the first question. Any
// prior collected values and history are cleared.
func (st *Stepper) start(s *session.Session) []models.Prompt {
	s.Reset()
	first := st.plan.First()
	s.State = first.State
	slog.Info("Stepper started form", "userID", s.UserID)
	return []models.Prompt{
		{Text: msgStarted},
		st.promptFor(first, s),
	}
}

// back rolls the session back one completed step, clearing that step's
// value, and re-asks it. With no history it reports a non-fatal rejection.
func (st *Stepper) back(s *session.Session) []models.Prompt {
	step, ok := s.Back()
	if !ok {
		slog.Debug("Stepper back with empty history", "userID", s.UserID, "state", s.State)
		return []models.Prompt{{Text: msgCannotBack}}
	}
	field, found := st.plan.FieldForState(step.State)
	if !found {
		// Should be impossible: history only ever holds plan states.
		slog.Error("Stepper back to unknown state", "userID", s.UserID, "state", step.State)
		s.Reset()
		return []models.Prompt{{Text: msgSystemError, Choices: menuChoices}}
	}
	slog.Info("Stepper went back", "userID", s.UserID, "to", step.State)
	return []models.Prompt{st.promptFor(field, s)}
}

// abort cancels a form in progress.
func (st *Stepper) abort(s *session.Session) []models.Prompt {
	if !s.Active() {
		return []models.Prompt{{Text: msgNotActive, Choices: menuChoices}}
	}
	s.Reset()
	slog.Info("Stepper cancelled form", "userID", s.UserID)
	return []models.Prompt{{Text: msgCancelled, Choices: menuChoices}}
}

// status reports form progress and the values collected so far.
func (st *Stepper) status(s *session.Session) []models.Prompt {
	if !s.Active() {
		return []models.Prompt{{Text: "No report in progress.", Choices: menuChoices}}
	}

	total := st.plan.TotalSteps()
	done := s.Progress()
	var b strings.Builder
	fmt.Fprintf(&b, "Progress: %d/%d steps completed.\n", done, total)
	if field, ok := st.plan.FieldForState(s.State); ok {
		fmt.Fprintf(&b, "Current question: %s\n", field.Label)
	}
	if done > 0 {
		b.WriteString("\nCollected so far:\n")
		for _, step := range s.History {
			if step.Field == models.FieldEvidencePhoto {
				fmt.Fprintf(&b, "• %s: attached\n", st.labelFor(step.Field))
				continue
			}
			fmt.Fprintf(&b, "• %s: %s\n", st.labelFor(step.Field), s.Values[step.Field])
		}
	}
	return []models.Prompt{{Text: strings.TrimRight(b.String(), "\n")}}
}

// answer handles an input for the field awaited in the current state.
func (st *Stepper) answer(s *session.Session, ev models.Event) ([]models.Prompt, error) {
	field, ok := st.plan.FieldForState(s.State)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownState, s.State)
	}

	if ev.Kind != field.Kind {
		slog.Debug("Stepper kind mismatch", "userID", s.UserID, "state", s.State, "got", ev.Kind, "want", field.Kind)
		return []models.Prompt{{Text: msgKindMismatch}, st.promptFor(field, s)}, nil
	}

	var value, confirmation string
	switch field.Kind {
	case models.EventText:
		normalized, err := field.Validate(ev.Text)
		if err != nil {
			slog.Debug("Stepper rejected input", "userID", s.UserID, "field", field.Key, "reason", err)
			return []models.Prompt{{Text: fmt.Sprintf("❌ %s", err)}, st.promptFor(field, s)}, nil
		}
		value = normalized
		confirmation = fmt.Sprintf("✅ %s: %s", field.Label, normalized)
	case models.EventSelection:
		label, err := validate.Choice(ev.Selection, field.Options)
		if err != nil {
			slog.Debug("Stepper rejected selection", "userID", s.UserID, "field", field.Key, "reason", err)
			return []models.Prompt{{Text: fmt.Sprintf("❌ %s", err)}, st.promptFor(field, s)}, nil
		}
		value = label
		confirmation = fmt.Sprintf("✅ %s: %s", field.Label, label)
	case models.EventPhoto:
		// Photos are stored base64-encoded so the session only ever holds
		// string values.
		value = base64.StdEncoding.EncodeToString(ev.Photo)
		confirmation = msgPhotoSaved
	}

	s.Complete(field.Key, value)
	slog.Info("Stepper accepted input", "userID", s.UserID, "field", field.Key, "step", s.Progress())

	next, more, err := st.plan.Next(field.State, s.Values[models.FieldActivityType])
	if err != nil {
		return nil, err
	}
	if !more {
		s.State = models.StateCompleted
		return append([]models.Prompt{{Text: confirmation}}, st.summary(s)...), nil
	}
	s.State = next.State
	return []models.Prompt{{Text: confirmation}, st.promptFor(next, s)}, nil
}

// completed handles confirm/cancel while the summary is showing. Anything
// else is a kind mismatch that leaves the state unchanged.
func (st *Stepper) completed(ctx context.Context, s *session.Session, ev models.Event) ([]models.Prompt, error) {
	if ev.Kind != models.EventSelection {
		return append([]models.Prompt{{Text: msgKindMismatch}}, st.summary(s)...), nil
	}
	switch ev.Selection {
	case models.TriggerConfirm:
		return st.submit(ctx, s)
	case models.TriggerCancel:
		s.Reset()
		slog.Info("Stepper submission cancelled", "userID", s.UserID)
		return []models.Prompt{{Text: msgCancelled, Choices: menuChoices}}, nil
	default:
		return append([]models.Prompt{{Text: msgKindMismatch}}, st.summary(s)...), nil
	}
}

// submit hands the completed record to the gateway. The round trip is the
// one long-latency operation in the flow, so the user gets an explicit
// processing acknowledgment first. Success and failure both reset the
// session to a restartable state; the stepper never retries on its own.
func (st *Stepper) submit(ctx context.Context, s *session.Session) ([]models.Prompt, error) {
	rec, err := BuildRecord(s)
	if err != nil {
		return nil, err
	}

	var prompts []models.Prompt
	ack := models.Prompt{Text: msgProcessing}
	if st.notifier != nil {
		if err := st.notifier.Notify(ctx, s.UserID, ack); err != nil {
			slog.Warn("Stepper failed to send processing acknowledgment", "error", err, "userID", s.UserID)
		}
	} else {
		prompts = append(prompts, ack)
	}

	result, err := st.gateway.Submit(ctx, rec)
	s.Reset()
	if err != nil {
		slog.Error("Stepper gateway submit failed", "error", err, "userID", s.UserID)
		return append(prompts, models.Prompt{
			Text:    fmt.Sprintf("❌ Failed to save your report: %s", err),
			Choices: []models.Choice{{Key: models.TriggerStart, Label: "Try again"}},
		}), nil
	}
	if !result.Success {
		slog.Warn("Stepper gateway rejected submission", "userID", s.UserID, "message", result.Message)
		return append(prompts, models.Prompt{
			Text:    fmt.Sprintf("❌ Failed to save your report: %s", result.Message),
			Choices: []models.Choice{{Key: models.TriggerStart, Label: "Try again"}},
		}), nil
	}

	slog.Info("Stepper submission stored", "userID", s.UserID)
	return append(prompts, models.Prompt{
		Text:    fmt.Sprintf("🎉 Report saved. %s", result.Message),
		Choices: []models.Choice{{Key: models.TriggerStart, Label: "New report"}},
	}), nil
}

// summary renders the full collected record with a submit/cancel choice.
func (st *Stepper) summary(s *session.Session) []models.Prompt {
	var b strings.Builder
	b.WriteString("All data collected. Summary:\n")
	for _, key := range models.CanonicalFieldOrder {
		v, ok := s.Values[key]
		if !ok || v == "" {
			v = models.Placeholder
		}
		fmt.Fprintf(&b, "• %s: %s\n", st.labelFor(key), v)
	}
	b.WriteString("• Evidence Photo: attached")
	return []models.Prompt{{
		Text: b.String(),
		Choices: []models.Choice{
			{Key: models.TriggerConfirm, Label: "Confirm and submit"},
			{Key: models.TriggerCancel, Label: "Cancel"},
		},
		AllowBack: true,
	}}
}

// promptFor renders the question for a field, numbered by the session's
// position in the form.
func (st *Stepper) promptFor(field FieldDef, s *session.Session) models.Prompt {
	return models.Prompt{
		Text:      fmt.Sprintf("%d. %s", s.Progress()+1, field.Prompt),
		Choices:   field.Options,
		AllowBack: s.Progress() > 0,
	}
}

// labelFor resolves the display label for a field key.
func (st *Stepper) labelFor(key string) string {
	for _, group := range [][]FieldDef{st.plan.Common, st.plan.Tail} {
		for _, f := range group {
			if f.Key == key {
				return f.Label
			}
		}
	}
	for _, branch := range st.plan.Branches {
		for _, f := range branch {
			if f.Key == key {
				return f.Label
			}
		}
	}
	return key
}
