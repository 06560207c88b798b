package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTSource subscribes to a topic carrying one JSON record per message.
//
// Paho owns reconnects for this source: once the first connect succeeds the
// session stays in Run until ctx is done, and connection loss only flips the
// health state until the library restores the link.
type MQTTSource struct {
	broker   string
	topic    string
	qos      byte
	clientID string
	username string
	password string
}

// MQTTOptions configures an MQTTSource.
type MQTTOptions struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	QoS      byte
	ClientID string // generated when empty
	Username string
	Password string
}

// NewMQTTSource builds a subscriber from opts.
func NewMQTTSource(opts MQTTOptions) *MQTTSource {
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "instrumon-" + uuid.NewString()
	}
	qos := opts.QoS
	if qos > 2 {
		qos = 0
	}
	return &MQTTSource{
		broker:   opts.Broker,
		topic:    opts.Topic,
		qos:      qos,
		clientID: clientID,
		username: opts.Username,
		password: opts.Password,
	}
}

func (s *MQTTSource) Name() string {
	return "MQTT"
}

// Run connects, subscribes, and blocks until ctx is done.
func (s *MQTTSource) Run(ctx context.Context, h Handler) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	if s.username != "" {
		opts.SetUsername(s.username)
		opts.SetPassword(s.password)
	}
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetCleanSession(true)
	// Messages must reach the handler one at a time and in order.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Printf("%s: connected to %s, subscribing to %s", s.Name(), s.broker, s.topic)
		token := client.Subscribe(s.topic, s.qos, s.messageHandler(h))
		if token.Wait() && token.Error() != nil {
			log.Printf("%s: failed to subscribe: %v", s.Name(), token.Error())
			return
		}
		h.OnConnect()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		h.OnDisconnect(err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	}
	if err := token.Error(); err != nil {
		return sessionError(s.Name(), fmt.Errorf("connect %s: %w", s.broker, err))
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (s *MQTTSource) messageHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		h.OnMessage(msg.Payload())
	}
}
