package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/fieldassign/core/mqtt"
	"github.com/kilianp07/fieldassign/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	// SubscribeInstructions makes the client accept instructions published
	// on <prefix>/sessions/+/instructions.
	SubscribeInstructions bool            `json:"subscribe_instructions"`
	UseTLS                bool            `json:"use_tls"`
	ClientCert            string          `json:"client_cert"`
	ClientKey             string          `json:"client_key"`
	CABundle              string          `json:"ca_bundle"`
	AuthMethod            string          `json:"auth_method"`
	QoS                   map[string]byte `json:"qos"`
	LWTTopic              string          `json:"lwt_topic"`
	LWTPayload            string          `json:"lwt_payload"`
	LWTQoS                byte            `json:"lwt_qos"`
	LWTRetain             bool            `json:"lwt_retain"`
	MaxRetries            int             `json:"max_retries"`
	BackoffMS             int             `json:"backoff_ms"`
	PublishTimeoutMS      int             `json:"publish_timeout_ms"`
	TLSConfig             *tls.Config     `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Broker == "" {
		c.Broker = "tcp://localhost:1883"
	}
	if c.ClientID == "" {
		c.ClientID = "fieldassign"
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "fieldassign"
	}
	c.TopicPrefix = strings.TrimSuffix(c.TopicPrefix, "/")
	if c.LWTTopic == "" {
		c.LWTTopic = c.StatusTopic()
		c.LWTPayload = "offline"
		c.LWTRetain = true
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	if c.PublishTimeoutMS <= 0 {
		c.PublishTimeoutMS = 5000
	}
}

// Validate checks the configuration of an enabled client.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return fmt.Errorf("mqtt: broker is required")
	}
	switch c.AuthMethod {
	case "", "username_password", "mtls", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	for k, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("mqtt: qos %s must be 0, 1 or 2", k)
		}
	}
	return nil
}

// StatusTopic is the retained online/offline topic of the service.
func (c Config) StatusTopic() string { return c.TopicPrefix + "/status" }

// TableTopic is the retained assignment table topic of a session.
func (c Config) TableTopic(sessionID string) string {
	return fmt.Sprintf("%s/sessions/%s/table", c.TopicPrefix, sessionID)
}

// InstructionTopic is the wildcard topic instructions are received on.
func (c Config) InstructionTopic() string {
	return c.TopicPrefix + "/sessions/+/instructions"
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements the Publisher interface using Eclipse Paho.
type PahoClient struct {
	cli     pahoClient
	cfg     Config
	logger  logger.Logger
	handler coremqtt.InstructionHandler
	backoff time.Duration
	timeout time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the MQTT broker. When handler is non-nil and the
// configuration asks for it, instructions are subscribed to on every
// (re)connect.
func NewPahoClient(cfg Config, handler coremqtt.InstructionHandler) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		cfg:     cfg,
		logger:  log,
		handler: handler,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
		timeout: time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if t := c.Publish(cfg.StatusTopic(), pc.qos("status"), true, "online"); t.Wait() && t.Error() != nil {
			log.Errorf("status publish error: %v", t.Error())
		}
		if pc.handler == nil || !cfg.SubscribeInstructions {
			return
		}
		if t := c.Subscribe(cfg.InstructionTopic(), pc.qos("instruction"), pc.onInstruction); t.Wait() && t.Error() != nil {
			log.Errorf("subscribe error: %v", t.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS || cfg.AuthMethod == "mtls" {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("read ca: no certificates in %s", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) qos(kind string) byte {
	if q, ok := p.cfg.QoS[kind]; ok {
		return q
	}
	return 0
}

// onInstruction accepts either {"text": "..."} or a plain text payload.
func (p *PahoClient) onInstruction(_ paho.Client, msg paho.Message) {
	sessionID, ok := sessionFromTopic(p.cfg.TopicPrefix, msg.Topic())
	if !ok {
		p.logger.Warnf("ignoring instruction on unexpected topic %s", msg.Topic())
		return
	}
	text := strings.TrimSpace(string(msg.Payload()))
	var body struct {
		Text string `json:"text"`
	}
	if strings.HasPrefix(text, "{") {
		if err := json.Unmarshal(msg.Payload(), &body); err != nil {
			p.logger.Errorf("failed to decode instruction: %v", err)
			return
		}
		text = body.Text
	}
	if text == "" {
		p.logger.Warnf("ignoring empty instruction for session %s", sessionID)
		return
	}
	p.handler(context.Background(), sessionID, text)
}

func sessionFromTopic(prefix, topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/sessions/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/instructions")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Publish sends payload to topic, retrying with exponential backoff.
func (p *PahoClient) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	qos := p.qos("table")
	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		if !token.WaitTimeout(p.timeout) {
			publishErr = coremqtt.ErrPublishTimeout
		} else {
			publishErr = token.Error()
		}
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt == p.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Config returns the effective configuration.
func (p *PahoClient) Config() Config { return p.cfg }

// Disconnect marks the service offline and closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli == nil || !p.cli.IsConnected() {
		return
	}
	t := p.cli.Publish(p.cfg.StatusTopic(), p.qos("status"), true, "offline")
	t.WaitTimeout(time.Second)
	p.cli.Disconnect(250)
}
