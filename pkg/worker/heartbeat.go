package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// heartbeatPayload is published on HeartbeatSubject for every registered
// worker at each Start interval, whether or not its health changed, as a
// push complement to /health polling.
type heartbeatPayload struct {
	Name      string    `json:"name"`
	Health    Health    `json:"health"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatSubject is the NATS subject worker health snapshots publish to.
const HeartbeatSubject = "hopper.worker.heartbeat"

// NATSBridge periodically publishes every registered worker's current
// health to HeartbeatSubject, and lets external processes subscribe to the
// same subject to push their own out-of-band health announcements.
type NATSBridge struct {
	conn   *nats.Conn
	coord  *Coordinator
	stopCh chan struct{}
}

// ConnectNATSBridge dials url and wires it to coord. The caller must call
// Close when done.
func ConnectNATSBridge(url string, coord *Coordinator) (*NATSBridge, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("worker: connect nats: %w", err)
	}
	return &NATSBridge{conn: conn, coord: coord, stopCh: make(chan struct{})}, nil
}

// Start begins the periodic heartbeat publish loop until Close is called.
func (b *NATSBridge) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.publishAll()
			case <-b.stopCh:
				return
			}
		}
	}()
}

func (b *NATSBridge) publishAll() {
	for _, d := range b.coord.Descriptors() {
		payload, err := json.Marshal(heartbeatPayload{Name: d.Name, Health: d.LastHealth, Timestamp: time.Now()})
		if err != nil {
			continue
		}
		_ = b.conn.Publish(HeartbeatSubject, payload)
	}
}

// Subscribe registers a handler invoked whenever any worker (including ones
// managed by another process) publishes a heartbeat.
func (b *NATSBridge) Subscribe(handler func(name string, health Health, ts time.Time)) (*nats.Subscription, error) {
	return b.conn.Subscribe(HeartbeatSubject, func(msg *nats.Msg) {
		var p heartbeatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			return
		}
		handler(p.Name, p.Health, p.Timestamp)
	})
}

// Close stops the publish loop and drains the NATS connection.
func (b *NATSBridge) Close() {
	close(b.stopCh)
	b.conn.Drain()
}
