/*
Package events provides an in-memory event broker for Flotilla's pub/sub messaging.

The events package implements a lightweight event bus for broadcasting agent
lifecycle events to interested subscribers. Convergence passes, individual
state changes, and configuration updates are published here so that loosely
coupled components (metrics, status streaming, audit logging) can observe the
agent without being wired into the convergence loop itself.

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - Type: Event type (convergence.pass.completed, dataset.handoff, etc.)
  - Hostname: Node the event originated from
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Types

Convergence pass events:
  - convergence.pass.started: a pass began on this node
  - convergence.pass.completed: a pass finished with no failures
  - convergence.pass.failed: one or more changes in the pass failed
  - convergence.pass.overran: a pass ran longer than the loop interval

Change events:
  - convergence.change.applied / convergence.change.failed
  - Metadata carries the change description and affected resources

Configuration and dataset events:
  - config.updated: a new desired deployment was stored
  - dataset.created, dataset.deleted, dataset.handoff

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s: %s\n",
				event.Timestamp.Format("15:04:05"),
				event.Type,
				event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventPassCompleted,
		Hostname: "node1",
		Message:  "convergence pass applied 3 changes",
	})

# Design Notes

Publish is fire-and-forget: events may be dropped when a subscriber's buffer
is full, which keeps a slow consumer from ever stalling the convergence loop.
Subscribers that need a durable record should persist events themselves.

# See Also

  - pkg/agent for the convergence loop that publishes here
  - pkg/metrics for counters derived from these events
*/
package events
