package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a progress event emitted during a migration run.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// UnitID is the associated work unit ID, if applicable.
	UnitID string `json:"unit_id,omitempty"`

	// Entity is the vendor entity reference, if applicable.
	Entity string `json:"entity,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event type constants.
const (
	EventTypeRunStarted    = "run.started"
	EventTypeRunCompleted  = "run.completed"
	EventTypeRunFailed     = "run.failed"
	EventTypeUnitStarted   = "unit.started"
	EventTypeUnitCompleted = "unit.completed"
	EventTypeUnitSkipped   = "unit.skipped"
	EventTypeUnitFailed    = "unit.failed"
	EventTypeUnitRetrying  = "unit.retrying"
	EventTypePolicyDenied  = "policy.denied"
	EventTypeReviewNeeded  = "conversion.review_needed"
)

// Event severity levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber handles published events.
type EventSubscriber func(event Event)

// EventPublisher is the in-process progress event bus. Subscribers receive
// every published event; delivery is synchronous unless async is enabled.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []EventSubscriber
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// NewEventPublisher creates an event publisher.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ep := &EventPublisher{config: cfg}
	if cfg.Enabled && cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.drain()
	}
	return ep, nil
}

// Subscribe registers a subscriber for all subsequent events.
func (ep *EventPublisher) Subscribe(sub EventSubscriber) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.subscribers = append(ep.subscribers, sub)
}

// Publish delivers an event to all subscribers. Missing IDs and timestamps
// are filled in.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.buffer != nil {
		ep.mu.RLock()
		closed := ep.closed
		ep.mu.RUnlock()
		if closed {
			return fmt.Errorf("event publisher stopped")
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliver(event)
	return nil
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, vendor string, total int) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s started: %d units from %s", runID, total, vendor),
		Level:   EventLevelInfo,
		Data:    map[string]interface{}{"vendor": vendor, "total": total},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s completed with status %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		RunID:   runID,
		Message: fmt.Sprintf("Run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// PublishUnitStarted publishes a unit started event.
func (ep *EventPublisher) PublishUnitStarted(runID, unitID, entity string) error {
	return ep.Publish(Event{
		Type:    EventTypeUnitStarted,
		RunID:   runID,
		UnitID:  unitID,
		Entity:  entity,
		Message: fmt.Sprintf("Migrating %s", entity),
		Level:   EventLevelInfo,
	})
}

// PublishUnitCompleted publishes a unit completed event.
func (ep *EventPublisher) PublishUnitCompleted(runID, unitID, entity string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeUnitCompleted,
		RunID:   runID,
		UnitID:  unitID,
		Entity:  entity,
		Message: fmt.Sprintf("Migrated %s", entity),
		Level:   EventLevelInfo,
		Data:    map[string]interface{}{"duration": duration.Seconds()},
	})
}

// PublishUnitFailed publishes a unit failed event.
func (ep *EventPublisher) PublishUnitFailed(runID, unitID, entity, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeUnitFailed,
		RunID:   runID,
		UnitID:  unitID,
		Entity:  entity,
		Message: fmt.Sprintf("Failed to migrate %s: %s", entity, reason),
		Level:   EventLevelError,
		Data:    map[string]interface{}{"reason": reason},
	})
}

// PublishUnitRetrying publishes a retry warning.
func (ep *EventPublisher) PublishUnitRetrying(runID, unitID string, attempt, max int, class string) error {
	return ep.Publish(Event{
		Type:    EventTypeUnitRetrying,
		RunID:   runID,
		UnitID:  unitID,
		Message: fmt.Sprintf("Retrying after %s failure (attempt %d/%d)", class, attempt, max),
		Level:   EventLevelWarning,
		Data:    map[string]interface{}{"attempt": attempt, "class": class},
	})
}

// PublishPolicyDenied publishes a policy denial event.
func (ep *EventPublisher) PublishPolicyDenied(runID, unitID, entity, policy, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyDenied,
		RunID:   runID,
		UnitID:  unitID,
		Entity:  entity,
		Message: fmt.Sprintf("Policy %s denied %s: %s", policy, entity, reason),
		Level:   EventLevelWarning,
		Data:    map[string]interface{}{"policy": policy, "reason": reason},
	})
}

// Close stops the publisher and waits for buffered events to drain.
func (ep *EventPublisher) Close() error {
	ep.mu.Lock()
	if ep.closed {
		ep.mu.Unlock()
		return nil
	}
	ep.closed = true
	ep.mu.Unlock()
	if ep.buffer != nil {
		close(ep.buffer)
		ep.wg.Wait()
	}
	return nil
}

func (ep *EventPublisher) drain() {
	defer ep.wg.Done()
	for event := range ep.buffer {
		ep.deliver(event)
	}
}

func (ep *EventPublisher) deliver(event Event) {
	ep.mu.RLock()
	subs := make([]EventSubscriber, len(ep.subscribers))
	copy(subs, ep.subscribers)
	ep.mu.RUnlock()
	for _, sub := range subs {
		sub(event)
	}
}
