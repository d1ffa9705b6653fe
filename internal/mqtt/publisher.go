// Package mqtt mirrors the dashboard state to an MQTT broker so other home
// automation can follow the energy flows without polling the backend.
package mqtt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"energydash/internal/snapshot"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	queueSize      = 32
	publishTimeout = 5 * time.Second
)

// Sender publishes a single message
type Sender interface {
	Publish(topic string, retain bool, payload []byte) error
}

// Message is one outgoing MQTT message
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// State is the JSON document published on <topic>/state
type State struct {
	Online bool               `json:"online"`
	Time   string             `json:"time,omitempty"`
	Mode   string             `json:"mode,omitempty"`
	State  string             `json:"state,omitempty"`
	SOC    *float64           `json:"soc,omitempty"`
	Power  map[string]float64 `json:"power,omitempty"`
}

// Messages builds the messages mirroring doc below topic. A nil snapshot
// only marks the mirror offline; the retained node powers stay untouched.
func Messages(topic string, doc snapshot.Doc) ([]Message, error) {
	topic = strings.TrimSuffix(topic, "/")

	state := State{Online: doc != nil}
	var msgs []Message

	if doc != nil {
		state.Time = doc.StringOr("", "ess", "time")
		state.Mode = doc.StringOr("", "ess", "mode")
		state.State = doc.StringOr("", "ess", "state")
		state.SOC = doc.FloatPtr("bms", "soc")
		state.Power = make(map[string]float64)

		nodes := make([]string, 0, len(snapshot.MeterFields))
		for node := range snapshot.MeterFields {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)

		for _, node := range nodes {
			w, ok := doc.NodePower(node)
			if !ok {
				continue
			}
			state.Power[node] = w
			msgs = append(msgs, Message{
				Topic:   fmt.Sprintf("%s/power/%s", topic, node),
				Payload: []byte(decimal.NewFromFloat(w).StringFixed(0)),
				Retain:  true,
			})
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	msgs = append(msgs, Message{Topic: topic + "/state", Payload: payload, Retain: true})
	return msgs, nil
}

// Publisher is a controller display that forwards every snapshot to MQTT.
// Messages are queued and sent by a single worker so a slow broker never
// stalls the poll loop.
type Publisher struct {
	sender Sender
	topic  string
	logger *zap.Logger

	queue    chan Message
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPublisher creates a publisher for topic
func NewPublisher(sender Sender, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		sender: sender,
		topic:  topic,
		logger: logger,
		queue:  make(chan Message, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Start runs the sender worker
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.sendLoop()
	p.logger.Info("MQTT publisher started", zap.String("topic", p.topic))
}

// Stop ends the sender worker. Queued messages are dropped.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
	p.logger.Info("MQTT publisher stopped")
}

// Show queues the messages for doc
func (p *Publisher) Show(doc snapshot.Doc) {
	msgs, err := Messages(p.topic, doc)
	if err != nil {
		p.logger.Error("Failed to build MQTT messages", zap.Error(err))
		return
	}
	for _, msg := range msgs {
		select {
		case p.queue <- msg:
		default:
			p.logger.Warn("MQTT queue full, dropping message", zap.String("topic", msg.Topic))
		}
	}
}

func (p *Publisher) sendLoop() {
	defer p.wg.Done()

	for {
		select {
		case msg := <-p.queue:
			if err := p.sender.Publish(msg.Topic, msg.Retain, msg.Payload); err != nil {
				p.logger.Warn("Failed to publish",
					zap.String("topic", msg.Topic),
					zap.Error(err))
			}
		case <-p.stopCh:
			return
		}
	}
}

// Client is a Sender backed by a paho connection
type Client struct {
	client paho.Client
	logger *zap.Logger
}

// Connect dials broker and returns a connected client. The connection
// reconnects on its own after it is lost.
func Connect(broker, clientID string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	return &Client{client: client, logger: logger}, nil
}

// Publish sends payload with QoS 0 and waits for it to be handed off
func (c *Client) Publish(topic string, retain bool, payload []byte) error {
	token := c.client.Publish(topic, 0, retain, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	return token.Error()
}

// Close disconnects from the broker
func (c *Client) Close() {
	if c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}
