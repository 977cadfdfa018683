package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/mxl983/mango-rover/internal/constants"
	"github.com/mxl983/mango-rover/internal/driver"
	"github.com/mxl983/mango-rover/internal/hub"
	"github.com/mxl983/mango-rover/internal/power"
	"github.com/mxl983/mango-rover/internal/sensors"
	"github.com/mxl983/mango-rover/internal/server"
	"github.com/mxl983/mango-rover/internal/service_registry"
	"github.com/mxl983/mango-rover/internal/services"
	"github.com/mxl983/mango-rover/internal/telemetry"
	"github.com/mxl983/mango-rover/internal/utils"
	"github.com/mxl983/mango-rover/pkg/clock"
	"github.com/mxl983/mango-rover/pkg/file"
	"github.com/mxl983/mango-rover/pkg/mqtt"
	"github.com/mxl983/mango-rover/pkg/shell"
	"github.com/mxl983/mango-rover/pkg/storage"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig("configs/rover.yaml", fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	applyDefaults(config)

	clk := clock.NewRealClock()

	// Power channel: out-of-band broker link, independent of the dashboard.
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	log.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient)
	powerChan := power.NewChannel(mqttClient, byte(config.MQTT.QOS), log)

	err = mqttClient.Initialize(mqtt.Options{
		Broker:           config.MQTT.Broker,
		ClientID:         config.MQTT.ClientID,
		Username:         config.MQTT.Username,
		Password:         config.MQTT.Password,
		CACertificate:    config.MQTT.CACertificate,
		OnConnect:        powerChan.HandleConnect,
		OnConnectionLost: powerChan.HandleConnectionLost,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	err = powerChan.ListenForCommands(func(_ MQTT.Client, msg MQTT.Message) {
		// Remote intent markers mirror the HTTP system endpoints.
		switch string(msg.Payload()) {
		case "shutdown", "reboot":
			marker := filepath.Join(config.Server.SharedDir, string(msg.Payload())+".req")
			if err := fileClient.WriteFile(marker, "remote command at "+time.Now().UTC().Format(time.RFC3339)); err != nil {
				log.Error().Err(err).Msg("Failed to write remote intent marker")
			}
		default:
			log.Info().Str("topic", msg.Topic()).Str("payload", string(msg.Payload())).Msg("Remote command received")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Remote command subscription failed")
	}

	// Driver subprocesses.
	tracker := telemetry.NewVoltageTracker(config.Telemetry.Voltage.HistorySize)
	voltageMonitor := driver.NewVoltageMonitor(config.Driver.PythonPath, config.Driver.VoltageScript,
		tracker, config.Driver.MaxRestarts, config.Driver.RestartDelay.Std(), log)
	motorDriver := driver.NewMotorDriver(config.Driver.PythonPath, config.Driver.MotorScript,
		config.Driver.MaxRestarts, config.Driver.RestartDelay.Std(), log)

	// Sensor sources.
	runner := shell.NewCommandRunner(10*time.Second, log)
	usbState := sensors.NewUSBPowerState()

	registry := sensors.NewRegistry()
	registry.Register(&sensors.CPUTempSource{Runner: runner, Logger: log})
	registry.Register(&sensors.CPULoadSource{Logger: log})
	registry.Register(&sensors.WifiSignalSource{Interface: "wlan0", Runner: runner, Logger: log})
	registry.Register(&sensors.USBPowerSource{State: usbState})
	registry.Register(&telemetry.VoltageSource{
		Tracker:   tracker,
		Requester: voltageMonitor,
		Calibration: telemetry.BatteryCalibration{
			EmptyVoltage: config.Telemetry.Voltage.EmptyVoltage,
			FullVoltage:  config.Telemetry.Voltage.FullVoltage,
		},
	})
	if config.Telemetry.GPS.Enabled {
		registry.Register(&sensors.GPSSource{
			Port:     config.Telemetry.GPS.DevicePort,
			BaudRate: config.Telemetry.GPS.BaudRate,
			Logger:   log,
		})
	}

	pool := utils.NewWorkerPool(8)
	defer pool.Shutdown()

	aggregator := telemetry.NewAggregator(registry, pool, config.Telemetry.CollectTimeout.Std(), clk, log)

	// Idle monitor and hub.
	exitCh := make(chan struct{})
	exitOnce := sync.OnceFunc(func() { close(exitCh) })

	idleMonitor := services.NewIdleMonitor(services.IdleMonitorConfig{
		Tick:               config.Idle.Tick.Std(),
		GracePeriod:        config.Idle.GracePeriod.Std(),
		IdleTimeout:        config.Idle.IdleTimeout.Std(),
		ClockJumpThreshold: config.Idle.ClockJumpThreshold.Std(),
		PiOffDelayMs:       config.Idle.PiOffDelayMs,
		ShutdownGraceDelay: config.Idle.ShutdownGraceDelay.Std(),
		SharedDir:          config.Server.SharedDir,
	}, powerChan, fileClient, clk, exitOnce, log)

	dashboardHub := hub.NewHub(idleMonitor, config.Telemetry.OnlineThreshold.Std(), clk, log)

	telemetryService := services.NewTelemetryService(aggregator, dashboardHub,
		config.Telemetry.BroadcastInterval.Std(), log)

	// Optional capture upload target.
	var store storage.ObjectStorageClient
	if config.Storage.Enabled {
		store = storage.NewObjectStorage()
		if err := store.Connect(config.Storage.Endpoint, config.Storage.AccessKey,
			config.Storage.SecretKey, config.Storage.UseSSL); err != nil {
			log.Error().Err(err).Msg("Object storage unavailable; captures stay local")
			store = nil
		}
	}

	httpServer := server.NewServer(server.Config{
		ListenAddress:    config.Server.ListenAddress,
		SharedDir:        config.Server.SharedDir,
		PhotosDir:        config.Server.PhotosDir,
		CameraSecretHash: config.Server.CameraSecretHash,
		MediaConfigURL:   config.Server.MediaConfigURL,
		StorageEnabled:   store != nil,
		StorageBucket:    config.Storage.Bucket,
	}, dashboardHub, motorDriver, usbState, powerChan, runner, fileClient, store, log)

	serviceRegistry := service_registry.NewServiceRegistry(log)
	serviceRegistry.Register("voltage-monitor", voltageMonitor)
	serviceRegistry.Register("motor-driver", motorDriver)
	serviceRegistry.Register("telemetry", telemetryService)
	serviceRegistry.Register("idle-monitor", idleMonitor)
	serviceRegistry.Register("http", httpServer)

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")
	powerChan.Log("Rover bridge online")

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stopCh:
		log.Info().Msg("Shutting down gracefully...")
	case <-exitCh:
		log.Info().Msg("Idle shutdown complete; exiting")
	}

	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Service shutdown reported errors")
	}
	mqttClient.Disconnect(250)
}

// applyDefaults fills unset configuration values with the shipped defaults.
func applyDefaults(config *utils.Config) {
	if config.Telemetry.BroadcastInterval == 0 {
		config.Telemetry.BroadcastInterval = utils.Duration(constants.DefaultIdleTick)
	}
	if config.Telemetry.CollectTimeout == 0 {
		config.Telemetry.CollectTimeout = utils.Duration(5 * time.Second)
	}
	if config.Telemetry.OnlineThreshold == 0 {
		config.Telemetry.OnlineThreshold = utils.Duration(constants.DefaultOnlineThreshold)
	}
	if config.Telemetry.Voltage.HistorySize == 0 {
		config.Telemetry.Voltage.HistorySize = constants.DefaultVoltageHistorySize
	}
	if config.Telemetry.Voltage.EmptyVoltage == 0 {
		config.Telemetry.Voltage.EmptyVoltage = constants.DefaultEmptyVoltage
	}
	if config.Telemetry.Voltage.FullVoltage == 0 {
		config.Telemetry.Voltage.FullVoltage = constants.DefaultFullVoltage
	}
	if config.Idle.Tick == 0 {
		config.Idle.Tick = utils.Duration(constants.DefaultIdleTick)
	}
	if config.Idle.GracePeriod == 0 {
		config.Idle.GracePeriod = utils.Duration(constants.DefaultGracePeriod)
	}
	if config.Idle.IdleTimeout == 0 {
		config.Idle.IdleTimeout = utils.Duration(constants.DefaultIdleTimeout)
	}
	if config.Idle.ClockJumpThreshold == 0 {
		config.Idle.ClockJumpThreshold = utils.Duration(constants.DefaultClockJumpThreshold)
	}
	if config.Idle.PiOffDelayMs == 0 {
		config.Idle.PiOffDelayMs = constants.DefaultPiOffDelayMs
	}
	if config.Idle.ShutdownGraceDelay == 0 {
		config.Idle.ShutdownGraceDelay = utils.Duration(constants.DefaultShutdownGraceDelay)
	}
}
