package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/mxl983/mango-rover/pkg/file"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
}

// Options carries the broker connection parameters.
type Options struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	CACertificate string // optional PEM file; TLS is skipped when empty

	OnConnect        func()
	OnConnectionLost func(err error)
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
	}
}

// Initialize sets up the MQTT client and starts the connection. The paho
// client reconnects on its own after connection loss.
func (s *MqttService) Initialize(options Options) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(options.Broker)
	opts.SetClientID(options.ClientID)
	opts.SetAutoReconnect(true)

	if options.Username != "" {
		opts.SetUsername(options.Username)
		opts.SetPassword(options.Password)
	}

	if options.CACertificate != "" {
		caCert, err := s.fileClient.ReadFileRaw(options.CACertificate)
		if err != nil {
			return fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return fmt.Errorf("failed to append CA certificate")
		}
		opts.SetTLSConfig(&tls.Config{
			RootCAs: caCertPool,
		})
	}

	if options.OnConnect != nil {
		opts.SetOnConnectHandler(func(mqtt.Client) {
			options.OnConnect()
		})
	}
	if options.OnConnectionLost != nil {
		opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			options.OnConnectionLost(err)
		})
	}

	client := mqtt.NewClient(opts)
	s.client = client

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
}

// IsConnectionOpen reports whether the underlying client currently holds an
// open connection to the broker.
func (s *MqttService) IsConnectionOpen() bool {
	return s.client.IsConnectionOpen()
}
