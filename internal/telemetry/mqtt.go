package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"zlac-drive/internal/config"
)

// Client publishes driver telemetry and delivers inbound velocity commands
// over MQTT.
type Client struct {
	mqtt   mqtt.Client
	topics config.Topics
	log    logrus.FieldLogger
}

// NewClient connects to the broker. Connection failure here is fatal to the
// caller; later drops are handled by paho's auto-reconnect.
func NewClient(cfg config.MQTT, log logrus.FieldLogger) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("MQTT client connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Errorf("MQTT connection lost: %v", err)
	})

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return &Client{mqtt: c, topics: cfg.Topics, log: log}, nil
}

// SubscribeCommands delivers each well-formed cmd_vel payload to fn. fn runs
// on a paho callback goroutine, so it must only hand the values off.
func (c *Client) SubscribeCommands(fn func(linear, angular float64)) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var cmd VelocityCommand
		if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
			c.log.Errorf("discarding malformed velocity command: %v", err)
			return
		}
		fn(cmd.Linear.X, cmd.Angular.Z)
	}
	token := c.mqtt.Subscribe(c.topics.Command, 0, handler)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topics.Command, err)
	}
	c.log.Infof("subscribed to %s", c.topics.Command)
	return nil
}

// publish marshals and fires at QoS 0 without waiting on the token; the
// control loop must never block on the broker.
func (c *Client) publish(topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	c.mqtt.Publish(topic, 0, false, payload)
	return nil
}

func (c *Client) PublishOdometry(o Odometry) error {
	return c.publish(c.topics.Odometry, o)
}

func (c *Client) PublishForwardVelocity(v float64) error {
	return c.publish(c.topics.ForwardVelocity, Scalar{Data: v})
}

func (c *Client) PublishWheelState(s WheelState) error {
	return c.publish(fmt.Sprintf("%s/%s/state", c.topics.MotorStatePrefix, s.Wheel), s)
}

func (c *Client) PublishTransform(tf Transform) error {
	return c.publish(c.topics.Transform, tf)
}

// Close disconnects from the broker after flushing in-flight messages.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}
