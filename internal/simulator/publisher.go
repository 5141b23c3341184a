package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-resty/resty/v2"
	"github.com/okian/airrisk/internal/adapters/mqtt"
)

// ErrPublish is returned when a reading could not be delivered.
var ErrPublish = errors.New("publish failed")

// deviceTimeLayout matches the firmware timestamp the MQTT listener accepts.
const deviceTimeLayout = "2006-01-02 15:04:05"

// Publisher delivers readings to the service.
type Publisher interface {
	Publish(ctx context.Context, r Reading) (Outcome, error)
	Close()
}

// assessReply is the subset of the /assess response the summary needs.
type assessReply struct {
	RiskLevel string            `json:"risk_level"`
	Alerts    []json.RawMessage `json:"alerts"`
}

// HTTPPublisher posts readings to the service API.
type HTTPPublisher struct {
	url    string
	client *resty.Client
}

// NewHTTPPublisher targets baseURL+endpoint.
func NewHTTPPublisher(baseURL, endpoint string, timeout time.Duration) *HTTPPublisher {
	return &HTTPPublisher{
		url: baseURL + endpoint,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// Publish implements Publisher. /assess answers 200 with the assessment;
// /readings answers 202 with an acknowledgement.
func (p *HTTPPublisher) Publish(ctx context.Context, r Reading) (Outcome, error) {
	var reply assessReply
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(r).
		SetResult(&reply).
		Post(p.url)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %w", ErrPublish, r.SensorID, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return Outcome{Accepted: true, RiskLevel: reply.RiskLevel, Alerts: len(reply.Alerts)}, nil
	case http.StatusAccepted:
		return Outcome{Accepted: true}, nil
	default:
		return Outcome{}, fmt.Errorf("%w: %s: status %d", ErrPublish, r.SensorID, resp.StatusCode())
	}
}

// Healthy probes GET /healthz.
func (p *HTTPPublisher) Healthy(ctx context.Context, baseURL string) error {
	resp, err := p.client.R().SetContext(ctx).Get(baseURL + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode())
	}
	return nil
}

// Close implements Publisher.
func (p *HTTPPublisher) Close() {}

// MQTTPublisher publishes device payloads to a broker topic.
type MQTTPublisher struct {
	client  paho.Client
	topic   string
	timeout time.Duration
}

// NewMQTTPublisher connects to broker.
func NewMQTTPublisher(broker, topic string, timeout time.Duration) (*MQTTPublisher, error) {
	if topic == "" {
		topic = mqtt.DefaultTopic
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("airrisk-sim-" + SensorIDs(1)[0]).
		SetConnectTimeout(timeout).
		SetAutoReconnect(true)

	client := paho.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: connect %s: timeout", ErrPublish, broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrPublish, broker, err)
	}
	return &MQTTPublisher{client: client, topic: topic, timeout: timeout}, nil
}

// DevicePayload renders r the way sensor firmware publishes it.
func DevicePayload(r Reading) mqtt.Payload {
	return mqtt.Payload{
		DeviceID:    r.SensorID,
		Timestamp:   r.Timestamp.UTC().Format(deviceTimeLayout),
		Temperature: &r.Temperature,
		Humidity:    &r.Humidity,
		CO2:         &r.CO2,
		VOC:         &r.VOC,
		PM25:        &r.PM25,
		PM10:        &r.PM10,
	}
}

// Publish implements Publisher. The broker acknowledges delivery only, so
// the outcome carries no assessment.
func (p *MQTTPublisher) Publish(ctx context.Context, r Reading) (Outcome, error) {
	body, err := json.Marshal(DevicePayload(r))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %w", ErrPublish, r.SensorID, err)
	}
	tok := p.client.Publish(p.topic, mqtt.DefaultQoS, false, body)
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-time.After(p.timeout):
		return Outcome{}, fmt.Errorf("%w: %s: timeout", ErrPublish, r.SensorID)
	}
	if err := tok.Error(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %w", ErrPublish, r.SensorID, err)
	}
	return Outcome{Accepted: true}, nil
}

// Close implements Publisher.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
