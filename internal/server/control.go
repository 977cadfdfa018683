package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mxl983/mango-rover/internal/models"
)

// handleDrive forwards the held-key set to the motor driver. Resending an
// unchanged set is harmless; the driver applies the same state again.
func (s *Server) handleDrive(c *gin.Context) {
	var cmd models.DriveCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid drive command"})
		return
	}

	keys := models.NormalizeDriveKeys(cmd.Keys)
	if err := s.motor.Drive(keys); err != nil {
		s.logger.Error().Err(err).Msg("Failed to forward drive command")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "motor driver unavailable"})
		return
	}

	c.Status(http.StatusOK)
}

// handleShutdown writes the shutdown intent marker for the host watcher.
// The response acknowledges the signal, not its completion.
func (s *Server) handleShutdown(c *gin.Context) {
	marker := filepath.Join(s.cfg.SharedDir, "shutdown.req")
	content := fmt.Sprintf("shutdown requested at %s", time.Now().UTC().Format(time.RFC3339))

	if err := s.fileClient.WriteFile(marker, content); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write shutdown marker")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write signal file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Host shutdown signal sent to Pi."})
}

// handleReboot writes the reboot intent marker for the host watcher.
func (s *Server) handleReboot(c *gin.Context) {
	marker := filepath.Join(s.cfg.SharedDir, "reboot.req")

	if err := s.fileClient.WriteFile(marker, "rebooting"); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write reboot marker")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write signal file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Host reboot sequence initiated."})
}

type usbPowerRequest struct {
	Action string `json:"action"` // "on" or "off"
}

// handleUSBPower toggles the downstream USB rail through uhubctl and
// mirrors the new state to the broker.
func (s *Server) handleUSBPower(c *gin.Context) {
	var req usbPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Action != "on" && req.Action != "off") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be \"on\" or \"off\""})
		return
	}

	state := "0"
	if req.Action == "on" {
		state = "1"
	}

	// Hub 1-1 carries the lights and USB audio.
	if _, err := s.runner.Run(c.Request.Context(), "sudo uhubctl -l 1-1 -a "+state); err != nil {
		s.logger.Error().Err(err).Msg("USB power toggle failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle USB power. Is uhubctl installed?"})
		return
	}

	on := req.Action == "on"
	s.usbState.Set(on)
	s.powerChan.PublishUSBState(on)

	warning := "USB Audio re-enabled"
	if !on {
		warning = "USB Audio disconnected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"usbPower": req.Action,
		"warning":  warning,
	})
}
