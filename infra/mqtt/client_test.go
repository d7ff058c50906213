package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/kilianp07/icusim/core/mqtt"
)

// generateCert writes a self-signed certificate used as client cert and CA.
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
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	caFile = filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o644))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o644))
	return
}

func withMock(t *testing.T, mc *mockClient) {
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
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg = Config{Broker: "tcp://b:1883"}
	cfg.SetDefaults()
	assert.Equal(t, "icusim/summary", cfg.SummaryTopic)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.NotEmpty(t, cfg.ClientID)
	assert.NoError(t, cfg.Validate())

	cfg.QoS = map[string]byte{"summary": 3}
	assert.Error(t, cfg.Validate())
	cfg.QoS = nil
	cfg.UseTLS = true
	assert.Error(t, cfg.Validate())
}

func TestPublishSummary(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", SummaryTopic: "icu/summary", Retain: true, QoS: map[string]byte{"summary": 1}}
	pub, err := NewPahoPublisher(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, mc.subscribed, "no request topic, no subscription")

	require.NoError(t, pub.PublishSummary(coremqtt.Summary{RunID: "r1", Rounds: 10, PeakMean: 3.5}))
	require.Len(t, mc.published, 1)
	msg := mc.published[0]
	assert.Equal(t, "icu/summary", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var got coremqtt.Summary
	require.NoError(t, json.Unmarshal(msg.payload.([]byte), &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 10, got.Rounds)
}

func TestRunRequestSubscription(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	var (
		mu   sync.Mutex
		reqs []coremqtt.RunRequest
	)
	handler := func(r coremqtt.RunRequest) {
		mu.Lock()
		reqs = append(reqs, r)
		mu.Unlock()
	}
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", RequestTopic: "icu/run", QoS: map[string]byte{"request": 2}}
	pub, err := NewPahoPublisher(cfg, handler)
	require.NoError(t, err)
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "icu/run", mc.subscribed[0].topic)
	assert.Equal(t, byte(2), mc.subscribed[0].qos)

	pub.onRequest(nil, mockMessage{[]byte(`{"request_id":"q1","rounds":50,"seed":7}`)})
	pub.onRequest(nil, mockMessage{[]byte(`{}`)})
	pub.onRequest(nil, mockMessage{[]byte(`not json`)})

	require.Len(t, reqs, 2)
	assert.Equal(t, "q1", reqs[0].RequestID)
	assert.Equal(t, 50, reqs[0].Rounds)
	require.NotNil(t, reqs[0].Seed)
	assert.Equal(t, int64(7), *reqs[0].Seed)
	assert.NotEmpty(t, reqs[1].RequestID, "missing id is generated")
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	pub, err := NewPahoPublisher(cfg, nil)
	require.NoError(t, err)
	assert.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))
	pub.Disconnect()
	assert.Empty(t, mc.published)
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	withMock(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, pub.PublishSummary(coremqtt.Summary{RunID: "r"}))
	assert.Len(t, mc.published, 2)
}

func TestRetryExhausted(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	withMock(t, mc)
	pub, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 2, BackoffMS: 1}, nil)
	require.NoError(t, err)
	err = pub.PublishSummary(coremqtt.Summary{RunID: "r"})
	assert.ErrorIs(t, err, coremqtt.ErrPublish)
	assert.ErrorIs(t, err, fail)
	assert.Len(t, mc.published, 3)
}

func TestConnectError(t *testing.T) {
	mc := &mockClient{connectErr: errors.New("refused")}
	withMock(t, mc)
	_, err := NewPahoPublisher(Config{Broker: "tcp://localhost:1883"}, nil)
	assert.EqualError(t, err, "refused")
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	var p Publisher = m
	require.NoError(t, p.PublishSummary(coremqtt.Summary{RunID: "a"}))
	m.Fail = true
	assert.ErrorIs(t, p.PublishSummary(coremqtt.Summary{RunID: "b"}), coremqtt.ErrPublish)
	assert.Len(t, m.Published(), 1)
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

type subscribed struct {
	topic string
	qos   byte
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts        *paho.ClientOptions
	subscribed  []subscribed
	published   []published
	publishErrs []error
	connectErr  error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return &dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	m.published = append(m.published, published{topic, qos, retained, payload})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, _ paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, subscribed{topic, qos})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
