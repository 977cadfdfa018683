package utils

import (
	"github.com/mxl983/mango-rover/pkg/file"
)

// Config represents the structure of the bridge daemon configuration file.
type Config struct {
	Server struct {
		ListenAddress    string `yaml:"listen_address"`     // HTTP/WebSocket listen address
		SharedDir        string `yaml:"shared_dir"`         // Shared volume watched by the host for intent markers
		PhotosDir        string `yaml:"photos_dir"`         // Directory for high-res captures
		CameraSecretHash string `yaml:"camera_secret_hash"` // bcrypt hash of the camera-control shared secret
		MediaConfigURL   string `yaml:"media_config_url"`   // MediaMTX path-config PATCH endpoint
	} `yaml:"server"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Username      string `yaml:"username"`       // Broker username
		Password      string `yaml:"password"`       // Broker password
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate (optional)
		QOS           int    `yaml:"qos"`            // QoS level for power/log publishes
	} `yaml:"mqtt"`

	Telemetry struct {
		BroadcastInterval Duration `yaml:"broadcast_interval"` // Interval between HEALTH_UPDATE broadcasts
		CollectTimeout    Duration `yaml:"collect_timeout"`    // Per-cycle sensor collection timeout
		OnlineThreshold   Duration `yaml:"online_threshold"`   // Max silence before a link counts as offline

		Voltage struct {
			HistorySize  int     `yaml:"history_size"`  // Rolling window of raw voltage readings
			EmptyVoltage float64 `yaml:"empty_voltage"` // Pack voltage mapped to 0%
			FullVoltage  float64 `yaml:"full_voltage"`  // Pack voltage mapped to 100%
		} `yaml:"voltage"`

		GPS struct {
			Enabled    bool   `yaml:"enabled"`     // Enable the serial GPS position source
			DevicePort string `yaml:"device_port"` // Serial port of the GPS receiver
			BaudRate   int    `yaml:"baud_rate"`   // Baud rate for the serial link
		} `yaml:"gps"`
	} `yaml:"telemetry"`

	Idle struct {
		Tick               Duration `yaml:"tick"`                 // Idle-check period
		GracePeriod        Duration `yaml:"grace_period"`         // Startup window during which shutdown never fires
		IdleTimeout        Duration `yaml:"idle_timeout"`         // Silence after which the rover powers down
		ClockJumpThreshold Duration `yaml:"clock_jump_threshold"` // Elapsed-tick anomaly treated as an NTP correction
		PiOffDelayMs       int      `yaml:"pi_off_delay_ms"`      // Delay before the controller cuts the main rail
		ShutdownGraceDelay Duration `yaml:"shutdown_grace_delay"` // Pause before the process exits after triggering
	} `yaml:"idle"`

	Driver struct {
		PythonPath    string   `yaml:"python_path"`    // Python interpreter for the driver scripts
		MotorScript   string   `yaml:"motor_script"`   // Motor driver script path
		VoltageScript string   `yaml:"voltage_script"` // Voltage/distance monitor script path
		MaxRestarts   int      `yaml:"max_restarts"`   // Restart budget after subprocess crashes
		RestartDelay  Duration `yaml:"restart_delay"`  // Delay between restarts
	} `yaml:"driver"`

	Storage struct {
		Enabled   bool   `yaml:"enabled"`    // Upload captures to object storage
		Endpoint  string `yaml:"endpoint"`   // S3-compatible endpoint
		AccessKey string `yaml:"access_key"` // Access key ID
		SecretKey string `yaml:"secret_key"` // Secret access key
		Bucket    string `yaml:"bucket"`     // Bucket for capture uploads
		UseSSL    bool   `yaml:"use_ssl"`    // Use TLS for the storage endpoint
	} `yaml:"storage"`
}

// OperatorConfig represents the structure of the operator client
// configuration file.
type OperatorConfig struct {
	Uplink struct {
		URL            string   `yaml:"url"`             // WebSocket endpoint of the bridge daemon
		PingInterval   Duration `yaml:"ping_interval"`   // Interval between liveness pings
		PongTimeout    Duration `yaml:"pong_timeout"`    // Silence after which the uplink counts as offline
		ReconnectDelay Duration `yaml:"reconnect_delay"` // Fixed backoff between reconnect attempts
	} `yaml:"uplink"`

	Control struct {
		DriveURL     string   `yaml:"drive_url"`     // Drive command endpoint
		SyncInterval Duration `yaml:"sync_interval"` // Held-key evaluation period
	} `yaml:"control"`

	Media struct {
		VideoURL   string   `yaml:"video_url"`   // WHEP endpoint for the camera stream
		AudioURL   string   `yaml:"audio_url"`   // WHEP endpoint for the microphone stream
		RetryDelay Duration `yaml:"retry_delay"` // Delay before a failed session renegotiates
	} `yaml:"media"`

	Broker struct {
		URL               string   `yaml:"url"`                // Broker websocket/TLS URL
		Username          string   `yaml:"username"`           // Operator credentials
		Password          string   `yaml:"password"`           //
		CACertificate     string   `yaml:"ca_certificate"`     // Path to the CA certificate (optional)
		QOS               int      `yaml:"qos"`                // QoS for power and heartbeat publishes
		HeartbeatInterval Duration `yaml:"heartbeat_interval"` // Operator liveness publish period
	} `yaml:"broker"`
}

// LoadConfig loads the bridge daemon YAML configuration from the specified
// file. It returns a pointer to the Config struct and an error if loading
// fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOperatorConfig loads the operator client YAML configuration from the
// specified file.
func LoadOperatorConfig(filename string, fileClient file.FileOperations) (*OperatorConfig, error) {
	var config OperatorConfig
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
