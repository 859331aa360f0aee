package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/kilianp07/fieldassign/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func useMockClient(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	require.NoError(t, err)
	assert.NotEmpty(t, tlsCfg.Certificates)
	assert.NotNil(t, tlsCfg.RootCAs)

	_, err = Config{UseTLS: true}.LoadTLSConfig()
	assert.Error(t, err)
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "u", opts.Username)
	assert.Equal(t, "p", opts.Password)

	opts, err = NewClientOptions(Config{Broker: "tcp://localhost:1883", AuthMethod: "mtls"})
	assert.Error(t, err, "mtls without certificates")
	assert.Nil(t, opts)
}

func TestConfigDefaultsAndTopics(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	assert.Equal(t, "fieldassign", cfg.TopicPrefix)
	assert.Equal(t, "fieldassign/status", cfg.LWTTopic)
	assert.Equal(t, "offline", cfg.LWTPayload)
	assert.Equal(t, "fieldassign/sessions/s1/table", cfg.TableTopic("s1"))
	assert.Equal(t, "fieldassign/sessions/+/instructions", cfg.InstructionTopic())

	cfg.Enabled = true
	cfg.QoS = map[string]byte{"table": 3}
	assert.Error(t, cfg.Validate())
	cfg.QoS = nil
	cfg.AuthMethod = "token"
	assert.Error(t, cfg.Validate())
}

func TestConnectPublishesStatusAndSubscribes(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", SubscribeInstructions: true, QoS: map[string]byte{"instruction": 1}}
	_, err := NewPahoClient(cfg, func(context.Context, string, string) {})
	require.NoError(t, err)

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "fieldassign/sessions/+/instructions", mc.subscribed[0].topic)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)
	require.NotEmpty(t, mc.published)
	assert.Equal(t, "fieldassign/status", mc.published[0].topic)
	assert.True(t, mc.published[0].retained)
}

func TestNoSubscriptionWithoutHandler(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	_, err := NewPahoClient(Config{SubscribeInstructions: true}, nil)
	require.NoError(t, err)
	assert.Empty(t, mc.subscribed)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg, nil)
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))

	cli.Disconnect()
	last := mc.published[len(mc.published)-1]
	assert.Equal(t, "fieldassign/status", last.topic)
	assert.Equal(t, "offline", last.payload)
}

func TestPublishQoSAndRetain(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{QoS: map[string]byte{"table": 2}}, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Publish(context.Background(), "t/table", []byte("{}"), true))
	last := mc.published[len(mc.published)-1]
	assert.Equal(t, "t/table", last.topic)
	assert.Equal(t, byte(2), last.qos)
	assert.True(t, last.retained)
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	mc.publishErrs = []error{errors.New("net fail"), nil}

	require.NoError(t, cli.Publish(context.Background(), "t", []byte("x"), false))
	assert.Equal(t, 2, mc.count("t"))
}

func TestRetryExhausted(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	mc.publishErrs = []error{errors.New("net fail"), errors.New("net fail")}

	err = cli.Publish(context.Background(), "t", []byte("x"), false)
	assert.ErrorContains(t, err, "net fail")
	assert.Equal(t, 2, mc.count("t"))
}

func TestPublishNotConnected(t *testing.T) {
	mc := &mockClient{disconnected: true}
	useMockClient(t, mc)
	cli, err := NewPahoClient(Config{}, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, cli.Publish(context.Background(), "t", nil, false), coremqtt.ErrNotConnected)
}

func TestOnInstruction(t *testing.T) {
	mc := &mockClient{}
	useMockClient(t, mc)
	type call struct{ id, text string }
	var calls []call
	cli, err := NewPahoClient(Config{SubscribeInstructions: true}, func(_ context.Context, id, text string) {
		calls = append(calls, call{id, text})
	})
	require.NoError(t, err)

	cli.onInstruction(nil, mockMessage{topic: "fieldassign/sessions/abc/instructions", p: []byte(`{"text":"trouble"}`)})
	cli.onInstruction(nil, mockMessage{topic: "fieldassign/sessions/abc/instructions", p: []byte("novice first")})
	cli.onInstruction(nil, mockMessage{topic: "fieldassign/sessions/abc/instructions", p: []byte("  ")})
	cli.onInstruction(nil, mockMessage{topic: "fieldassign/sessions/abc/instructions", p: []byte("{bad")})
	cli.onInstruction(nil, mockMessage{topic: "other/sessions/abc/instructions", p: []byte("trouble")})

	assert.Equal(t, []call{{"abc", "trouble"}, {"abc", "novice first"}}, calls)
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu           sync.Mutex
	opts         *paho.ClientOptions
	disconnected bool
	subscribed   []struct {
		topic string
		qos   byte
	}
	published   []published
	publishErrs []error
}

func (m *mockClient) count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.published {
		if p.topic == topic {
			n++
		}
	}
	return n
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var body string
	switch p := payload.(type) {
	case string:
		body = p
	case []byte:
		body = string(p)
	}
	m.published = append(m.published, published{topic, qos, retained, body})
	if topic != "fieldassign/status" && len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return !m.disconnected }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
