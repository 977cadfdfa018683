package main

import (
	"bufio"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mxl983/mango-rover/internal/operator"
	"github.com/mxl983/mango-rover/internal/utils"
	"github.com/mxl983/mango-rover/pkg/backoff"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/pkg/file"
	"github.com/mxl983/mango-rover/pkg/mqtt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadOperatorConfig("configs/operator.yaml", fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyDefaults(config)

	clk := clock.NewRealClock()

	// Broker login doubles as operator authentication. A failed connect
	// means bad credentials or an unreachable broker; either way the
	// session never starts and no power-up command is sent.
	mqttClient := mqtt.NewMqttService(fileClient)
	err = mqttClient.Initialize(mqtt.Options{
		Broker:        config.Broker.URL,
		ClientID:      "web_operator_" + uuid.New().String(),
		Username:      config.Broker.Username,
		Password:      config.Broker.Password,
		CACertificate: config.Broker.CACertificate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Broker login failed")
	}

	session := operator.NewBrokerSession(mqttClient, byte(config.Broker.QOS),
		config.Broker.HeartbeatInterval.Std(), clk, log)
	if err := session.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start broker session")
	}

	uplink := operator.NewUplink(operator.UplinkConfig{
		URL:          config.Uplink.URL,
		PingInterval: config.Uplink.PingInterval.Std(),
		PongTimeout:  config.Uplink.PongTimeout.Std(),
		Reconnect:    backoff.NewFixed(config.Uplink.ReconnectDelay.Std()),
	}, operator.WebsocketDialer{}, clk, log)
	if err := uplink.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start uplink")
	}

	keys := operator.NewKeyState()
	driveSync := operator.NewDriveSync(config.Control.DriveURL, config.Control.SyncInterval.Std(), keys, log)
	if err := driveSync.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start drive sync")
	}

	factory := operator.NewWebRTCTransportFactory(log)
	video := operator.NewMediaSession("video", config.Media.VideoURL, config.Media.RetryDelay.Std(), factory, log)
	audio := operator.NewMediaSession("audio", config.Media.AudioURL, config.Media.RetryDelay.Std(), factory, log)
	if err := video.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start video session")
	}
	if err := audio.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start audio session")
	}

	go readKeyLoop(os.Stdin, keys, log)
	go reportStatus(uplink, video, audio, log)

	log.Info().Msg("Operator client running; type held keys (e.g. \"wd\") and press enter, empty line stops")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh
	log.Info().Msg("Shutting down gracefully...")

	for _, stop := range []func() error{audio.Stop, video.Stop, driveSync.Stop, uplink.Stop, session.Stop} {
		if err := stop(); err != nil {
			log.Error().Err(err).Msg("Component shutdown reported an error")
		}
	}
	mqttClient.Disconnect(250)
}

// readKeyLoop treats each input line as the complete held-key set, so "wd"
// holds forward-right and an empty line releases everything.
func readKeyLoop(input *os.File, keys *operator.KeyState, log zerolog.Logger) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))

		held := make(map[string]bool, len(line))
		for _, r := range line {
			held[string(r)] = true
		}

		for _, key := range []string{"w", "a", "s", "d"} {
			if held[key] {
				keys.Press(key)
			} else {
				keys.Release(key)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("Key input closed")
	}
}

// reportStatus logs the link and media state once per interval so a headless
// run stays observable.
func reportStatus(uplink *operator.Uplink, video, audio *operator.MediaSession, log zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		event := log.Info().
			Bool("online", uplink.Online()).
			Dur("latency", uplink.Latency()).
			Int("reconnects", uplink.Reconnects()).
			Bool("video_ready", video.Ready()).
			Bool("audio_ready", audio.Ready())

		if snap, ok := uplink.LastSnapshot(); ok {
			event = event.Float64("battery", snap.BatteryPct).Float64("voltage", snap.Voltage)
		}
		event.Msg("Operator status")
	}
}

// applyDefaults fills unset configuration values with sensible defaults.
func applyDefaults(config *utils.OperatorConfig) {
	if config.Uplink.PingInterval == 0 {
		config.Uplink.PingInterval = utils.Duration(3 * time.Second)
	}
	if config.Uplink.PongTimeout == 0 {
		config.Uplink.PongTimeout = utils.Duration(10 * time.Second)
	}
	if config.Uplink.ReconnectDelay == 0 {
		config.Uplink.ReconnectDelay = utils.Duration(2 * time.Second)
	}
	if config.Control.SyncInterval == 0 {
		config.Control.SyncInterval = utils.Duration(100 * time.Millisecond)
	}
	if config.Media.RetryDelay == 0 {
		config.Media.RetryDelay = utils.Duration(3 * time.Second)
	}
	if config.Broker.HeartbeatInterval == 0 {
		config.Broker.HeartbeatInterval = utils.Duration(5 * time.Second)
	}
}
