package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mxl983/mango-rover/internal/driver"
	"github.com/mxl983/mango-rover/internal/hub"
	"github.com/mxl983/mango-rover/internal/power"
	"github.com/mxl983/mango-rover/internal/sensors"
	"github.com/mxl983/mango-rover/pkg/file"
	"github.com/mxl983/mango-rover/pkg/shell"
	"github.com/mxl983/mango-rover/pkg/storage"
	"github.com/rs/zerolog"
)

// Config carries the HTTP layer settings.
type Config struct {
	ListenAddress    string
	SharedDir        string
	PhotosDir        string
	CameraSecretHash string // bcrypt hash of the camera-control shared secret
	MediaConfigURL   string

	StorageEnabled bool
	StorageBucket  string
}

// Server wires the HTTP API and the WebSocket telemetry hub.
type Server struct {
	cfg        Config
	hub        *hub.Hub
	motor      *driver.MotorDriver
	usbState   *sensors.USBPowerState
	powerChan  *power.Channel
	runner     shell.Runner
	fileClient file.FileOperations
	store      storage.ObjectStorageClient // nil unless capture upload is enabled
	httpClient *http.Client
	logger     zerolog.Logger

	srv *http.Server
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewServer constructs the HTTP server with its dependencies.
func NewServer(cfg Config, h *hub.Hub, motor *driver.MotorDriver, usbState *sensors.USBPowerState,
	powerChan *power.Channel, runner shell.Runner, fileClient file.FileOperations,
	store storage.ObjectStorageClient, logger zerolog.Logger) *Server {

	return &Server{
		cfg:        cfg,
		hub:        h,
		motor:      motor,
		usbState:   usbState,
		powerChan:  powerChan,
		runner:     runner,
		fileClient: fileClient,
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Routes builds the Gin router with all routes registered.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		api.POST("/control/drive", s.handleDrive)

		system := api.Group("/system")
		{
			system.POST("/shutdown", s.handleShutdown)
			system.POST("/reboot", s.handleReboot)
			system.POST("/usb-power", s.handleUSBPower)
		}

		camera := api.Group("/camera")
		{
			camera.POST("/capture", s.handleCapture)
			camera.POST("/nightvision", s.handleNightVision)
			camera.POST("/focus", s.handleFocus)
			camera.POST("/resolution", s.handleResolution)
		}
	}

	router.Static("/photos", s.cfg.PhotosDir)
	router.GET("/ws", s.handleWebSocket)

	return router
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	if s.srv != nil {
		return errors.New("server is already running")
	}

	s.srv = &http.Server{
		Addr:    s.cfg.ListenAddress,
		Handler: s.Routes(),
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server terminated")
		}
	}()

	s.logger.Info().Str("address", s.cfg.ListenAddress).Msg("HTTP server started")
	return nil
}

// Stop shuts the server down, draining in-flight requests.
func (s *Server) Stop() error {
	if s.srv == nil {
		return errors.New("server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.srv = nil
	return err
}

// handleWebSocket upgrades the request and hands the connection to the hub.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	s.hub.Handle(conn)
}
