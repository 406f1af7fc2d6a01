// Package mqtt delivers assignment offers to technician apps over an
// MQTT broker and collects their answers.
package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/shotfleet/shotfleet/core/dispatch"
	"github.com/shotfleet/shotfleet/core/model"
	"github.com/shotfleet/shotfleet/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string          `json:"broker"`
	ClientID    string          `json:"client_id"`
	Username    string          `json:"username"`
	Password    string          `json:"password"`
	AnswerTopic string          `json:"answer_topic"`
	UseTLS      bool            `json:"use_tls"`
	ClientCert  string          `json:"client_cert"`
	ClientKey   string          `json:"client_key"`
	CABundle    string          `json:"ca_bundle"`
	QoS         map[string]byte `json:"qos"`
	MaxRetries  int             `json:"max_retries"`
	BackoffMS   int             `json:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient implements dispatch.Notifier using Eclipse Paho.
type PahoClient struct {
	cli         pahoClient
	answerTopic string
	qos         map[string]byte

	mu         sync.Mutex
	answers    map[string]chan bool
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker and subscribes to the answer
// topic.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		answerTopic: cfg.AnswerTopic,
		answers:     make(map[string]chan bool),
		logger:      log,
		qos:         cfg.QoS,
		maxRetries:  cfg.MaxRetries,
		backoff:     time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := pc.qos["answer"]; ok {
			qos = q
		}
		if token := c.Subscribe(pc.answerTopic, qos, pc.onAnswer); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
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
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the
// config.
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
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) onAnswer(_ paho.Client, msg paho.Message) {
	var m struct {
		OfferID  string `json:"offer_id"`
		Accepted bool   `json:"accepted"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode answer: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.answers[m.OfferID]
	if ok {
		select {
		case ch <- m.Accepted:
		default:
		}
		p.logger.Infof("received answer for offer %s", m.OfferID)
	}
	p.mu.Unlock()
}

// SendOffer publishes the offer on the technician's topic and returns
// the offer identifier used for answer tracking.
func (p *PahoClient) SendOffer(technicianID string, offer dispatch.Offer) (string, error) {
	offerID := uuid.NewString()
	msg := struct {
		OfferID      string    `json:"offer_id"`
		TechnicianID string    `json:"technician_id"`
		ProjectID    string    `json:"project_id"`
		Start        time.Time `json:"start"`
		End          time.Time `json:"end"`
		Address      string    `json:"address"`
		SentAt       int64     `json:"sent_at"`
	}{
		OfferID:      offerID,
		TechnicianID: technicianID,
		ProjectID:    offer.ProjectID,
		Start:        offer.Start,
		End:          offer.End,
		Address:      offer.Address,
		SentAt:       time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	topic := fmt.Sprintf("technician/%s/offer", technicianID)
	qos := byte(0)
	if q, ok := p.qos["offer"]; ok {
		qos = q
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("sent offer %s to %s", offerID, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	if publishErr != nil {
		return "", publishErr
	}

	p.mu.Lock()
	p.answers[offerID] = make(chan bool, 1)
	p.mu.Unlock()
	return offerID, nil
}

// WaitForAnswer blocks until the technician answers the offer or the
// timeout elapses. A timeout reads as a decline with ErrUpstreamTimeout
// so the caller moves on to the next candidate.
func (p *PahoClient) WaitForAnswer(offerID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.answers[offerID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown offer %s", offerID)
	}
	defer func() {
		p.mu.Lock()
		delete(p.answers, offerID)
		p.mu.Unlock()
	}()
	select {
	case accepted := <-ch:
		return accepted, nil
	case <-time.After(timeout):
		return false, fmt.Errorf("offer %s unanswered: %w", offerID, model.ErrUpstreamTimeout)
	}
}

// Disconnect closes the broker connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
