package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventStateReconciled  EventType = "STATE_RECONCILED"
	EventConsensusUpdated EventType = "CONSENSUS_UPDATED"
	EventExtractionFailed EventType = "EXTRACTION_FAILED"
	EventRiskAnalyzed     EventType = "RISK_ANALYZED"
	EventPlanClosed       EventType = "PLAN_CLOSED"
	EventPipelineStarted  EventType = "PIPELINE_STARTED"
	EventPipelineStopped  EventType = "PIPELINE_STOPPED"
	EventError            EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	// Set timestamp if not provided
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishStateReconciled publishes a per-timeframe reconciliation event
func (eb *EventBus) PublishStateReconciled(symbol, timeframe string, inferred bool) {
	eb.Publish(Event{
		Type: EventStateReconciled,
		Data: map[string]interface{}{
			"symbol":    symbol,
			"timeframe": timeframe,
			"inferred":  inferred,
		},
	})
}

// PublishConsensusUpdated publishes a per-symbol consensus event
func (eb *EventBus) PublishConsensusUpdated(symbol, direction string, confidence float64) {
	eb.Publish(Event{
		Type: EventConsensusUpdated,
		Data: map[string]interface{}{
			"symbol":     symbol,
			"direction":  direction,
			"confidence": confidence,
		},
	})
}

// PublishExtractionFailed publishes an extraction failure with its span
func (eb *EventBus) PublishExtractionFailed(symbol, reason, span string) {
	eb.Publish(Event{
		Type: EventExtractionFailed,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
			"span":   span,
		},
	})
}

// PublishRiskAnalyzed publishes a completed risk analysis
func (eb *EventBus) PublishRiskAnalyzed(planID, symbol, riskLevel string, positionSize float64) {
	eb.Publish(Event{
		Type: EventRiskAnalyzed,
		Data: map[string]interface{}{
			"plan_id":       planID,
			"symbol":        symbol,
			"risk_level":    riskLevel,
			"position_size": positionSize,
		},
	})
}

// PublishPlanClosed publishes a trade plan leaving the ANALYZED state
func (eb *EventBus) PublishPlanClosed(planID, status, feedback string) {
	eb.Publish(Event{
		Type: EventPlanClosed,
		Data: map[string]interface{}{
			"plan_id":  planID,
			"status":   status,
			"feedback": feedback,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
