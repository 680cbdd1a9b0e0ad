package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

// FeedState tracks a table subscription's lifecycle.
type FeedState string

const (
	StateUnsubscribed FeedState = "unsubscribed"
	StateConnecting   FeedState = "connecting"
	StateSubscribed   FeedState = "subscribed"
	StateDisconnected FeedState = "disconnected"
	StateError        FeedState = "error"
)

// InsertNotifier is called once for each genuinely new row that arrives
// over the feed (not for confirmations of this agent's own optimistic
// inserts). Fire-and-forget.
type InsertNotifier func(table, id string)

// Feed subscribes to the per-table broadcast topics and merges incoming
// change events into the store.
type Feed struct {
	client mqtt.Client
	store  *store.Store
	prefix string

	mu     sync.RWMutex
	states map[string]FeedState

	notify InsertNotifier
}

// Config holds the MQTT connection settings for the feed.
type Config struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string // defaults to "fleet"
}

// NewFeed creates a feed over a new MQTT client. Connect must be called
// before Subscribe.
func NewFeed(cfg Config, s *store.Store, notify InsertNotifier) *Feed {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "fleet"
	}
	f := &Feed{
		store:  s,
		prefix: cfg.TopicPrefix,
		states: make(map[string]FeedState),
		notify: notify,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("Realtime feed connection lost")
			f.markAll(StateDisconnected)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			// re-issue subscribes for every table that was subscribed
			// before the drop; no further backoff policy
			f.resubscribe(c)
		})
	f.client = mqtt.NewClient(opts)
	return f
}

// Connect establishes the broker connection.
func (f *Feed) Connect() error {
	token := f.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (f *Feed) Close() {
	f.client.Disconnect(250)
	f.markAll(StateUnsubscribed)
}

// Subscribe starts consuming change events for a table.
func (f *Feed) Subscribe(table string) error {
	f.setState(table, StateConnecting)
	topic := f.topic(table)
	token := f.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		f.handle(table, msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		f.setState(table, StateError)
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	f.setState(table, StateSubscribed)
	log.WithField("table", table).Info("Subscribed to realtime feed")
	return nil
}

// Unsubscribe stops consuming change events for a table. Issued when the
// view that started the subscription goes away.
func (f *Feed) Unsubscribe(table string) error {
	token := f.client.Unsubscribe(f.topic(table))
	token.Wait()
	f.setState(table, StateUnsubscribed)
	return token.Error()
}

// State reports the current subscription state for a table.
func (f *Feed) State(table string) FeedState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.states[table]; ok {
		return s
	}
	return StateUnsubscribed
}

// PublishChange broadcasts a confirmed row change. Implements the
// gateway's Publisher so this agent's durable writes reach other agents.
func (f *Feed) PublishChange(table, event string, row any) {
	data, err := json.Marshal(row)
	if err != nil {
		log.WithError(err).WithField("table", table).Error("Failed to marshal change event row")
		return
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		log.WithError(err).Error("Failed to round-trip change event row")
		return
	}
	payload, err := json.Marshal(ChangeEvent{Event: EventType(event), Table: table, Row: raw})
	if err != nil {
		log.WithError(err).Error("Failed to marshal change event")
		return
	}
	f.client.Publish(f.topic(table), 0, false, payload)
}

// handle decodes one feed message and applies it. Malformed payloads are
// dropped with a log line, never an error to the transport.
func (f *Feed) handle(table string, payload []byte) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.WithError(err).WithField("table", table).Warn("Dropping malformed feed event")
		return
	}
	if ev.Table == "" {
		ev.Table = table
	}
	f.Apply(ev)
}

// Apply merges a single change event into the store and fires the insert
// notifier for genuinely new rows.
func (f *Feed) Apply(ev ChangeEvent) {
	inserted := false
	var insertedID string

	switch ev.Table {
	case db.TableBookings:
		f.store.Bookings.Update(func(prev []models.BookingRequest) []models.BookingRequest {
			next, isNew := MergeBookings(prev, ev)
			inserted = isNew
			return next
		})
	case db.TableEmergencies:
		f.store.Emergencies.Update(func(prev []models.EmergencyRequest) []models.EmergencyRequest {
			next, isNew := MergeEmergencies(prev, ev)
			inserted = isNew
			return next
		})
	case db.TableVehicles:
		f.store.Vehicles.Update(func(prev []models.Vehicle) []models.Vehicle {
			next, isNew := MergeVehicles(prev, ev)
			inserted = isNew
			return next
		})
	case db.TableLoads:
		f.store.Loads.Update(func(prev []models.Load) []models.Load {
			next, isNew := MergeLoads(prev, ev)
			inserted = isNew
			return next
		})
	default:
		log.WithField("table", ev.Table).Warn("Feed event for unknown table")
		return
	}

	if inserted && f.notify != nil {
		if id, ok := ev.Row["id"].(string); ok {
			insertedID = id
		} else if id, ok := ev.Row["_id"].(string); ok {
			insertedID = id
		}
		f.notify(ev.Table, insertedID)
	}
}

func (f *Feed) topic(table string) string {
	return f.prefix + "/" + table + "/events"
}

func (f *Feed) setState(table string, s FeedState) {
	f.mu.Lock()
	f.states[table] = s
	f.mu.Unlock()
}

func (f *Feed) markAll(s FeedState) {
	f.mu.Lock()
	for table := range f.states {
		if f.states[table] == StateSubscribed || s == StateUnsubscribed {
			f.states[table] = s
		}
	}
	f.mu.Unlock()
}

func (f *Feed) resubscribe(c mqtt.Client) {
	f.mu.Lock()
	tables := make([]string, 0, len(f.states))
	for table, state := range f.states {
		if state == StateDisconnected || state == StateSubscribed {
			tables = append(tables, table)
		}
	}
	f.mu.Unlock()

	for _, table := range tables {
		if err := f.Subscribe(table); err != nil {
			log.WithError(err).WithField("table", table).Error("Resubscribe failed")
		}
	}
}
