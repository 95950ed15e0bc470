package bus

import (
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/homesentry/frigate-bridge/internal/metrics"
)

// Client wraps the paho MQTT client with the connection policy the bridge
// needs: auto-reconnect with bounded backoff and re-subscription after every
// reconnect.
type Client struct {
	client mqtt.Client

	// mu guards subs: the connect handler runs on a paho goroutine and may
	// race a late Subscribe.
	mu   sync.Mutex
	subs []subscription
}

type subscription struct {
	topic   string
	qos     byte
	handler func(topic string, payload []byte)
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
}

func NewClient(cfg Config) (*Client, error) {
	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	c := &Client{}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetOrderMatters(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetOnConnectHandler(func(cli mqtt.Client) {
		metrics.BusUp.Set(1)
		log.Printf("[INFO] Bus: connected to %s", broker)
		// Clean sessions lose subscriptions on reconnect; re-establish all.
		c.mu.Lock()
		subs := make([]subscription, len(c.subs))
		copy(subs, c.subs)
		c.mu.Unlock()
		for _, s := range subs {
			c.resubscribe(cli, s)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		metrics.BusUp.Set(0)
		log.Printf("[WARN] Bus: connection lost: %v", err)
	})

	c.client = mqtt.NewClient(opts)
	token := c.client.Connect()
	if ok := token.WaitTimeout(15 * time.Second); !ok {
		return nil, fmt.Errorf("mqtt connect timeout to %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return c, nil
}

func (c *Client) resubscribe(cli mqtt.Client, s subscription) {
	token := cli.Subscribe(s.topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("[ERROR] Bus: resubscribe %s failed: %v", s.topic, err)
		return
	}
	log.Printf("[INFO] Bus: subscribed to %s", s.topic)
}

// Subscribe registers a handler and subscribes now and after every reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	s := subscription{topic: topic, qos: qos, handler: handler}
	c.mu.Lock()
	c.subs = append(c.subs, s)
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Publish sends one message and waits for the broker ack.
func (c *Client) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

// Close flushes in-flight QoS-1 publications and disconnects.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(1000)
	}
	metrics.BusUp.Set(0)
}
