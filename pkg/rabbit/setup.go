package rabbit

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Logger defines the interface for logging operations in the rabbit package.
//
//go:generate mockgen -source=setup.go -destination=mock_logger.go -package=rabbit
type Logger interface {
	Info(msg string, err error, fields ...map[string]interface{})
	Debug(msg string, err error, fields ...map[string]interface{})
	Warn(msg string, err error, fields ...map[string]interface{})
	Error(msg string, err error, fields ...map[string]interface{})
}

// Rabbit consumes bucket notifications from a RabbitMQ queue and keeps its
// connection alive across broker restarts.
type Rabbit struct {
	cfg Config

	// Channel is the AMQP channel deliveries are consumed from. It is
	// replaced on reconnect.
	Channel *amqp.Channel

	conn   *amqp.Connection
	logger Logger

	// mu protects conn and Channel.
	mu sync.RWMutex

	shutdownSignal chan struct{}
	shutdownOnce   sync.Once
}

// NewClient connects to RabbitMQ and declares the exchange, queue and
// binding notifications are consumed from, plus the dead letter topology
// when configured.
func NewClient(cfg Config, logger Logger) (*Rabbit, error) {
	conn, err := newConnection(cfg, logger)
	if err != nil {
		return nil, err
	}

	ch, err := connectToChannel(conn, cfg, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Rabbit{
		cfg:            cfg,
		conn:           conn,
		Channel:        ch,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
	}, nil
}

// connectToChannel opens a channel on conn and declares the consumer
// topology:
//   - the durable exchange MinIO publishes to
//   - the optional dead letter exchange and queue
//   - the durable queue and its binding
//   - the prefetch limit
func connectToChannel(conn *amqp.Connection, cfg Config, logger Logger) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to create channel", err, nil)
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Channel.ExchangeName,
		cfg.Channel.ExchangeType,
		true,  // Durable
		false, // AutoDelete
		false, // Internal
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		logger.Error("failed to declare exchange", err, map[string]interface{}{
			"exchange": cfg.Channel.ExchangeName,
		})
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queueArgs, err := declareDeadLetter(ch, cfg.DeadLetter, logger)
	if err != nil {
		return nil, err
	}

	_, err = ch.QueueDeclare(
		cfg.Channel.QueueName,
		true,  // Durable
		false, // AutoDelete
		false, // Exclusive
		false, // NoWait
		queueArgs,
	)
	if err != nil {
		logger.Error("failed to declare queue", err, map[string]interface{}{
			"queue": cfg.Channel.QueueName,
		})
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.QueueBind(
		cfg.Channel.QueueName,
		cfg.Channel.RoutingKey,
		cfg.Channel.ExchangeName,
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		logger.Error("failed to bind queue", err, map[string]interface{}{
			"queue":    cfg.Channel.QueueName,
			"exchange": cfg.Channel.ExchangeName,
		})
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	if cfg.Channel.PrefetchCount > 0 {
		if err = ch.Qos(cfg.Channel.PrefetchCount, 0, false); err != nil {
			logger.Error("failed to set QoS", err, map[string]interface{}{
				"prefetch_count": cfg.Channel.PrefetchCount,
			})
			return nil, fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	return ch, nil
}

// declareDeadLetter declares the dead letter exchange and queue and returns
// the arguments the main queue needs to route rejected deliveries there.
func declareDeadLetter(ch *amqp.Channel, dl DeadLetter, logger Logger) (amqp.Table, error) {
	if dl.ExchangeName == "" {
		return nil, nil
	}

	err := ch.ExchangeDeclare(dl.ExchangeName, "direct", true, false, false, false, nil)
	if err != nil {
		logger.Error("failed to declare dead letter exchange", err, map[string]interface{}{
			"exchange": dl.ExchangeName,
		})
		return nil, fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	if _, err = ch.QueueDeclare(dl.QueueName, true, false, false, false, nil); err != nil {
		logger.Error("failed to declare dead letter queue", err, map[string]interface{}{
			"queue": dl.QueueName,
		})
		return nil, fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	if err = ch.QueueBind(dl.QueueName, dl.RoutingKey, dl.ExchangeName, false, nil); err != nil {
		logger.Error("failed to bind dead letter queue", err, map[string]interface{}{
			"queue":    dl.QueueName,
			"exchange": dl.ExchangeName,
		})
		return nil, fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	return deadLetterArgs(dl), nil
}

func deadLetterArgs(dl DeadLetter) amqp.Table {
	args := amqp.Table{
		"x-dead-letter-exchange":    dl.ExchangeName,
		"x-dead-letter-routing-key": dl.RoutingKey,
	}
	if dl.Ttl > 0 {
		args["x-message-ttl"] = int32(dl.Ttl * 1000)
	}
	return args
}

// RetryConnection watches the connection and re-establishes it, together
// with the channel topology, whenever it closes. It returns once the client
// is shut down.
func (rb *Rabbit) RetryConnection() {
outerLoop:
	for {
		rb.mu.RLock()
		errChan := rb.conn.NotifyClose(make(chan *amqp.Error, 1))
		rb.mu.RUnlock()

		select {
		case <-rb.shutdownSignal:
			rb.logger.Info("stopping rabbit reconnect loop", nil, nil)
			return

		case amqpErr := <-errChan:
			var cause error
			if amqpErr != nil {
				cause = amqpErr
			}
			rb.logger.Warn("rabbit connection closed, retrying", cause, nil)

			for {
				select {
				case <-rb.shutdownSignal:
					rb.logger.Info("stopping rabbit reconnect loop", nil, nil)
					return
				default:
				}

				newConn, err := newConnection(rb.cfg, rb.logger)
				if err != nil {
					rb.logger.Error("rabbit reconnection failed", err, nil)
					rb.pause()
					continue
				}

				ch, err := connectToChannel(newConn, rb.cfg, rb.logger)
				if err != nil {
					_ = newConn.Close()
					rb.logger.Error("failed to reopen rabbit channel, retrying", err, nil)
					rb.pause()
					continue
				}

				rb.mu.Lock()
				rb.conn = newConn
				rb.Channel = ch
				rb.mu.Unlock()

				rb.logger.Info("reconnected to rabbit", nil, nil)
				continue outerLoop
			}
		}
	}
}

func (rb *Rabbit) pause() {
	select {
	case <-rb.shutdownSignal:
	case <-time.After(reconnectDelay(rb.cfg)):
	}
}

func reconnectDelay(cfg Config) time.Duration {
	if cfg.Channel.DelayToReconnect <= 0 {
		return time.Second
	}
	return time.Duration(cfg.Channel.DelayToReconnect) * time.Millisecond
}

// newConnection dials RabbitMQ. Three modes are supported: TLS with client
// certificates, TLS with server authentication only, and plain AMQP. All
// connections use a 2-second heartbeat.
func newConnection(cfg Config, logger Logger) (*amqp.Connection, error) {
	addr := amqpURL(cfg.Connection)
	fields := map[string]interface{}{"rabbit_addr": redactedURL(cfg.Connection)}

	logger.Info("connecting to rabbit", nil, fields)

	amqpCfg := amqp.Config{Heartbeat: 2 * time.Second}
	if cfg.Connection.IsSSLEnabled && cfg.Connection.UseCert {
		tlsCfg, err := clientTLSConfig(cfg.Connection)
		if err != nil {
			logger.Error("failed to load rabbit TLS material", err, fields)
			return nil, err
		}
		amqpCfg.TLSClientConfig = tlsCfg
	}

	conn, err := amqp.DialConfig(addr, amqpCfg)
	if err != nil {
		logger.Error("error in connecting to rabbit", err, fields)
		return nil, fmt.Errorf("failed to connect to rabbit: %w", err)
	}

	logger.Info("connected to rabbit", nil, fields)
	return conn, nil
}

func amqpURL(c Connection) string {
	scheme := "amqp"
	if c.IsSSLEnabled {
		scheme = "amqps"
	}
	u := url.URL{
		Scheme: scheme,
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.FormatUint(uint64(c.Port), 10)),
		Path:   "/",
	}
	return u.String()
}

func redactedURL(c Connection) string {
	c.Password = "xxxxx"
	return amqpURL(c)
}

func clientTLSConfig(c Connection) (*tls.Config, error) {
	caCert, err := os.ReadFile(c.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, errors.New("CA certificate contains no PEM certificates")
	}

	cert, err := tls.LoadX509KeyPair(c.ClientCertPath, c.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client cert/key: %w", err)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		ServerName:   c.ServerName,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
