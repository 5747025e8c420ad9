// Package autopaho adapts github.com/eclipse/paho.golang/autopaho to the mqtt.Writer/mqtt.Subscriber contracts used by
// the coordinator. It owns nothing about which topics are subscribed: that bookkeeping belongs to whoever calls
// Subscribe/Unsubscribe, so that re-subscription after a reconnect can be driven from a single place.
package autopaho

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/sarayu-io/telemetrymon/internal/mqtt"
	"github.com/sarayu-io/telemetrymon/internal/telemetrylog"
)

// Options configures the broker connection. Zero-valued duration fields fall back to the package defaults, which match
// the bit-exact constants required of the coordinator (30s keepalive, 1000ms reconnect period, 10s connect timeout).
type Options struct {
	Host string
	Port int
	// UseTLS selects the "tls://" scheme (wss-equivalent security) over plaintext "tcp://".
	UseTLS    bool
	TLSConfig *tls.Config

	Username string
	Password string

	ClientID     string
	CleanSession bool

	Keepalive       time.Duration
	ReconnectPeriod time.Duration
	ConnectTimeout  time.Duration

	// OnConnect fires the first time the connection comes up. OnReconnect fires on every subsequent reconnection.
	// Neither callback re-subscribes anything; the caller is responsible for restoring its own subscription set.
	OnConnect   func(ctx context.Context)
	OnReconnect func(ctx context.Context)
	OnOffline   func()
	OnError     func(error)
}

const (
	DefaultKeepalive       = 30 * time.Second
	DefaultReconnectPeriod = 1000 * time.Millisecond
	DefaultConnectTimeout  = 10 * time.Second
)

type adapter struct {
	conn *autopaho.ConnectionManager
	r    paho.Router

	log *slog.Logger
}

var _ mqtt.Writer = &adapter{}
var _ mqtt.Subscriber = &adapter{}

// Dial connects to the broker described by opts and blocks until the initial connection is established. It returns a
// Writer/Subscriber pair plus a disconnect function to release the connection.
func Dial(ctx context.Context, opts Options) (mqtt.Writer, mqtt.Subscriber, func(context.Context) error, error) {
	opts = applyDefaults(opts)

	brokerURL, err := brokerURL(opts)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mqtt: broker url: %w", err)
	}

	a := &adapter{
		r:   paho.NewStandardRouter(),
		log: telemetrylog.ForComponent("mqtt.autopaho"),
	}

	var connectedOnce bool
	var stateMu sync.Mutex

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     uint16(opts.Keepalive.Seconds()),
		ConnectRetryDelay:             opts.ReconnectPeriod,
		ConnectTimeout:                opts.ConnectTimeout,
		CleanStartOnInitialConnection: opts.CleanSession,
		TlsCfg:                        opts.TLSConfig,

		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			stateMu.Lock()
			reconnect := connectedOnce
			connectedOnce = true
			stateMu.Unlock()

			if reconnect {
				a.log.Info("Reconnected to mqtt broker")
				if opts.OnReconnect != nil {
					opts.OnReconnect(ctx)
				}
				return
			}

			a.log.Info("Connected to mqtt broker")
			if opts.OnConnect != nil {
				opts.OnConnect(ctx)
			}
		},
		OnConnectError: func(err error) {
			a.log.With(telemetrylog.Error(err)).Warn("Failed to connect to mqtt broker")
			if opts.OnError != nil {
				opts.OnError(err)
			}
		},

		ClientConfig: paho.ClientConfig{
			ClientID: opts.ClientID,
			OnClientError: func(err error) {
				a.log.With(telemetrylog.Error(err)).Error("mqtt client error")
				if opts.OnError != nil {
					opts.OnError(err)
				}
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				a.log.With(slog.Int("reason", int(d.ReasonCode))).Warn("Disconnected from mqtt broker")
				if opts.OnOffline != nil {
					opts.OnOffline()
				}
			},
		},
	}

	if opts.Username != "" {
		cfg.ConnectUsername = opts.Username
		cfg.ConnectPassword = []byte(opts.Password)
	}

	a.log.With(slog.String("broker", brokerURL.String())).Info("Connecting to mqtt broker")
	conn, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mqtt: connect: %w", err)
	}
	a.conn = conn

	if err = conn.AwaitConnection(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("mqtt: wait for connection: %w", err)
	}

	conn.AddOnPublishReceived(func(rx autopaho.PublishReceived) (bool, error) {
		a.r.Route(rx.Packet.Packet())
		return true, nil
	})

	return a, a, conn.Disconnect, nil
}

func applyDefaults(opts Options) Options {
	if opts.Keepalive <= 0 {
		opts.Keepalive = DefaultKeepalive
	}
	if opts.ReconnectPeriod <= 0 {
		opts.ReconnectPeriod = DefaultReconnectPeriod
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	return opts
}

func brokerURL(opts Options) (*url.URL, error) {
	scheme := "tcp"
	if opts.UseTLS {
		scheme = "tls"
	}
	return url.Parse(fmt.Sprintf("%s://%s:%d", scheme, opts.Host, opts.Port))
}

func (a *adapter) WriteTopic(ctx context.Context, topic string, options mqtt.WriteOptions, value []byte) error {
	a.log.With(slog.String("topic", topic), slog.Any("options", options)).Debug("Publishing payload")

	_, err := a.conn.Publish(ctx, &paho.Publish{
		QoS:     uint8(options.QoS),
		Retain:  options.Retain,
		Topic:   topic,
		Payload: value,
	})

	return err
}

func (a *adapter) Subscribe(ctx context.Context, handler mqtt.Handler, subscriptions ...mqtt.Subscription) error {
	if len(subscriptions) == 0 {
		return nil
	}

	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, len(subscriptions)),
	}

	for i, s := range subscriptions {
		sub.Subscriptions[i] = paho.SubscribeOptions{
			Topic: s.Topic,
			QoS:   uint8(s.Options.QoS),
		}

		a.r.RegisterHandler(s.Topic, func(publish *paho.Publish) {
			handler.ServeMQTT(a, publish.Topic, publish.Payload)
		})
	}

	a.log.With(slog.Any("subscriptions", subscriptions)).Debug("Subscribing to mqtt topic(s)")
	_, err := a.conn.Subscribe(ctx, sub)
	return err
}

func (a *adapter) Unsubscribe(ctx context.Context, topics ...string) error {
	for _, t := range topics {
		a.r.UnregisterHandler(t)
	}

	a.log.With(slog.Any("topics", topics)).Debug("Unsubscribing from mqtt topic(s)")
	_, err := a.conn.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: topics,
	})

	return err
}
