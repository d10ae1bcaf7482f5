package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProtocolVersion identifies the trigger contract version exposed via /health.
const ProtocolVersion = "1.0.0"

// Kind names a trigger event type. Exactly two exist; anything else is
// rejected at the boundary.
type Kind string

const (
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
)

// Event captures one repository notification. It carries a repository
// reference (revision and/or ref) and nothing else is required; there is no
// branch filtering anywhere downstream.
type Event struct {
	DeliveryID string          `json:"delivery_id"`
	Kind       Kind            `json:"kind"`
	Repository string          `json:"repository,omitempty"`
	Revision   string          `json:"revision,omitempty"`
	Ref        string          `json:"ref,omitempty"`
	Sender     string          `json:"sender,omitempty"`
	ClientTime time.Time       `json:"client_time,omitempty"`
	ReceivedAt time.Time       `json:"received_at,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Normalize applies defaults and canonical formatting before validation. A
// missing delivery ID gets a fresh UUID so every accepted event is trackable.
func (e *Event) Normalize() {
	if e == nil {
		return
	}
	e.DeliveryID = strings.TrimSpace(e.DeliveryID)
	if e.DeliveryID == "" {
		e.DeliveryID = uuid.NewString()
	}
	e.Kind = Kind(strings.TrimSpace(string(e.Kind)))
	e.Repository = strings.TrimSpace(e.Repository)
	e.Revision = strings.TrimSpace(e.Revision)
	e.Ref = strings.TrimSpace(e.Ref)
	e.Sender = strings.TrimSpace(e.Sender)
}

// StampReceived overwrites ReceivedAt with the supplied clock reading (UTC).
func (e *Event) StampReceived(now time.Time) {
	if e == nil {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	e.ReceivedAt = now.UTC()
}

// Validate enforces the trigger interface: push and pull_request only, with a
// revision or ref to check out.
func (e Event) Validate() error {
	switch e.Kind {
	case KindPush, KindPullRequest:
	case "":
		return errors.New("kind is required")
	default:
		return fmt.Errorf("kind %q not supported", e.Kind)
	}
	if e.Revision == "" && e.Ref == "" {
		return errors.New("revision or ref is required")
	}
	return nil
}

// CheckoutTarget returns what the checkout collaborator should resolve: the
// exact revision when known, otherwise the symbolic ref.
func (e Event) CheckoutTarget() string {
	if e.Revision != "" {
		return e.Revision
	}
	return e.Ref
}

// EventProcessor consumes validated events.
type EventProcessor interface {
	HandleEvent(Event) error
}

// EventProcessorFunc adapts a function into an EventProcessor.
type EventProcessorFunc func(Event) error

// HandleEvent executes f(e).
func (f EventProcessorFunc) HandleEvent(e Event) error {
	if f == nil {
		return nil
	}
	return f(e)
}

// Logger records trigger status information. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// githubPayload is the subset of a GitHub webhook body the translator reads.
type githubPayload struct {
	After      string `json:"after"`
	Ref        string `json:"ref"`
	Repository struct {
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
	PullRequest struct {
		Head struct {
			SHA string `json:"sha"`
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Sender struct {
		Login string `json:"login"`
	} `json:"sender"`
}

// FromGitHub translates a GitHub webhook delivery into an Event. The event
// name comes from the X-GitHub-Event header; anything but push and
// pull_request is rejected by Validate downstream.
func FromGitHub(eventName, deliveryID string, body []byte) (Event, error) {
	var payload githubPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Event{}, fmt.Errorf("trigger: decode github payload: %w", err)
	}
	evt := Event{
		DeliveryID: deliveryID,
		Kind:       Kind(strings.TrimSpace(eventName)),
		Repository: payload.Repository.CloneURL,
		Sender:     payload.Sender.Login,
		Payload:    body,
	}
	switch evt.Kind {
	case KindPullRequest:
		evt.Revision = payload.PullRequest.Head.SHA
		evt.Ref = payload.PullRequest.Head.Ref
	default:
		evt.Revision = payload.After
		evt.Ref = payload.Ref
	}
	return evt, nil
}

type healthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type eventResponse struct {
	Status     string    `json:"status"`
	DeliveryID string    `json:"delivery_id"`
	ReceivedAt time.Time `json:"received_at"`
}
