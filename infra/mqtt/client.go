package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/evopt/core/model"
	coremqtt "github.com/kilianp07/evopt/core/mqtt"
	"github.com/kilianp07/evopt/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	// PlanTopic receives the full plan JSON after each optimal run.
	PlanTopic string `json:"plan_topic"`
	// VehicleTopicPrefix is the base of the per-vehicle setpoint topics,
	// completed as "<prefix>/<index>/setpoint".
	VehicleTopicPrefix string          `json:"vehicle_topic_prefix"`
	UseTLS             bool            `json:"use_tls"`
	ClientCert         string          `json:"client_cert"`
	ClientKey          string          `json:"client_key"`
	CABundle           string          `json:"ca_bundle"`
	AuthMethod         string          `json:"auth_method"`
	QoS                map[string]byte `json:"qos"`
	LWTTopic           string          `json:"lwt_topic"`
	LWTPayload         string          `json:"lwt_payload"`
	LWTQoS             byte            `json:"lwt_qos"`
	LWTRetain          bool            `json:"lwt_retain"`
	MaxRetries         int             `json:"max_retries"`
	BackoffMS          int             `json:"backoff_ms"`
	TLSConfig          *tls.Config     `json:"-"`
}

// SetDefaults fills unset topics.
func (c *Config) SetDefaults() {
	if c.PlanTopic == "" {
		c.PlanTopic = "evopt/plan"
	}
	if c.VehicleTopicPrefix == "" {
		c.VehicleTopicPrefix = "evopt/vehicle"
	}
	if c.ClientID == "" {
		c.ClientID = "evopt"
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoPublisher implements the Publisher interface using Eclipse Paho.
type PahoPublisher struct {
	cli        pahoClient
	planTopic  string
	vehPrefix  string
	qos        map[string]byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoPublisher connects to the MQTT broker.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pp := &PahoPublisher{
		planTopic:  cfg.PlanTopic,
		vehPrefix:  cfg.VehicleTopicPrefix,
		qos:        cfg.QoS,
		logger:     log,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(_ paho.Client) {
		log.Infof("MQTT connected")
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
	pp.cli = c
	return pp, nil
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
	if cfg.UseTLS {
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
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// setpoint is the per-vehicle payload for the next timestep.
type setpoint struct {
	Vehicle     int     `json:"vehicle"`
	PowerW      float64 `json:"power_w"`
	TargetSoC   float64 `json:"target_soc"`
	StepHours   float64 `json:"step_hours"`
	PlanID      string  `json:"plan_id"`
	GeneratedAt int64   `json:"generated_at"`
}

// PublishPlan sends the full plan to the plan topic and one retained
// setpoint message per vehicle.
func (p *PahoPublisher) PublishPlan(plan model.DispatchPlan) error {
	if !p.cli.IsConnected() {
		return coremqtt.ErrNotConnected
	}
	payload, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	if err := p.publish(p.planTopic, p.qosFor("plan"), false, payload); err != nil {
		return err
	}
	for _, vp := range plan.Vehicles {
		if len(vp.ChargePowerW) == 0 || len(vp.SoC) < 2 {
			continue
		}
		sp := setpoint{
			Vehicle:     vp.Index,
			PowerW:      vp.ChargePowerW[0],
			TargetSoC:   vp.SoC[1],
			StepHours:   plan.Horizon.StepHours,
			PlanID:      plan.ID,
			GeneratedAt: plan.GeneratedAt.UnixMilli(),
		}
		b, err := json.Marshal(sp)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%d/setpoint", p.vehPrefix, vp.Index)
		if err := p.publish(topic, p.qosFor("setpoint"), true, b); err != nil {
			return err
		}
	}
	p.logger.Infof("published plan %s for %d vehicles", plan.ID, len(plan.Vehicles))
	return nil
}

func (p *PahoPublisher) qosFor(kind string) byte {
	if q, ok := p.qos[kind]; ok {
		return q
	}
	return 0
}

func (p *PahoPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	retries := p.maxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := p.backoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= retries; attempt++ {
		token := p.cli.Publish(topic, qos, retained, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		time.Sleep(backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoPublisher) Disconnect() {
	p.cli.Disconnect(250)
}
