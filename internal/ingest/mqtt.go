package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to a broker topic and hands every message to the
// coordinator. When AckTopic is set, AckToken is published there for each
// stored reading.
type MQTTSource struct {
	coord    *Coordinator
	opts     *mqtt.ClientOptions
	Topic    string
	AckTopic string
	QoS      byte
}

func NewMQTTSource(coord *Coordinator, broker, clientID, topic string) *MQTTSource {
	m := &MQTTSource{coord: coord, Topic: topic, QoS: 1}
	m.opts = mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("ingest: mqtt connection lost", "err", err)
		}).
		SetOnConnectHandler(m.subscribe)
	return m
}

// subscribe runs on every (re)connect so the subscription survives broker
// restarts.
func (m *MQTTSource) subscribe(c mqtt.Client) {
	token := c.Subscribe(m.Topic, m.QoS, m.handler(c))
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Error("ingest: mqtt subscribe failed", "topic", m.Topic, "err", err)
			return
		}
		slog.Info("ingest: mqtt subscribed", "topic", m.Topic)
	}()
}

func (m *MQTTSource) handler(c mqtt.Client) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var ack func() error
		if m.AckTopic != "" {
			ack = func() error {
				// Waiting on a publish token inside a handler can deadlock
				// the client, so only report errors already known.
				token := c.Publish(m.AckTopic, 0, false, AckToken)
				select {
				case <-token.Done():
					return token.Error()
				default:
					return nil
				}
			}
		}
		if err := m.coord.Handle("mqtt", msg.Payload(), ack); err != nil {
			slog.Debug("ingest: mqtt message not acknowledged", "topic", msg.Topic(), "err", err)
		}
	}
}

func (m *MQTTSource) Run(ctx context.Context) error {
	client := mqtt.NewClient(m.opts)
	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	<-ctx.Done()
	slog.Info("ingest: mqtt source shutting down")
	client.Disconnect(250)
	return nil
}
