package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// authorizeSecret verifies the shared camera-control secret against the
// configured bcrypt hash. Missing or mismatched secrets are rejected
// immediately; there is nothing to retry.
func (s *Server) authorizeSecret(c *gin.Context, secret string) bool {
	if secret == "" {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.CameraSecretHash), []byte(secret)); err != nil {
		c.String(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// patchMediaConfig PATCHes the media server's camera path configuration.
func (s *Server) patchMediaConfig(settings map[string]any) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPatch, s.cfg.MediaConfigURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("media config API returned status %d", resp.StatusCode)
	}
	return nil
}

type nightVisionRequest struct {
	Active bool   `json:"active"`
	Secret string `json:"secret"`
}

// handleNightVision switches the camera between long-exposure and normal
// capture profiles.
func (s *Server) handleNightVision(c *gin.Context) {
	var req nightVisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !s.authorizeSecret(c, req.Secret) {
		return
	}

	var settings map[string]any
	if req.Active {
		settings = map[string]any{
			"rpiCameraFPS":        30,
			"rpiCameraShutter":    66000,
			"rpiCameraGain":       16.0,
			"rpiCameraExposure":   "long",
			"rpiCameraBrightness": 0.15,
			"rpiCameraContrast":   1.2,
			"rpiCameraSaturation": 0.5,
		}
	} else {
		settings = map[string]any{
			"rpiCameraFPS":        60,
			"rpiCameraShutter":    0,
			"rpiCameraGain":       0,
			"rpiCameraExposure":   "normal",
			"rpiCameraBrightness": 0,
			"rpiCameraContrast":   1.0,
			"rpiCameraSaturation": 1.0,
		}
	}

	if err := s.patchMediaConfig(settings); err != nil {
		s.logger.Error().Err(err).Msg("Media config API error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update camera settings"})
		return
	}

	mode := "Disabled"
	if req.Active {
		mode = "Enabled"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Night Vision " + mode})
}

type focusRequest struct {
	Mode   string `json:"mode"` // auto, near, normal, far
	Secret string `json:"secret"`
}

// handleFocus pins the lens to a preset position or returns it to
// continuous autofocus.
func (s *Server) handleFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !s.authorizeSecret(c, req.Secret) {
		return
	}

	var settings map[string]any
	if req.Mode == "auto" {
		settings = map[string]any{"rpiCameraAfMode": "continuous"}
	} else {
		position := 0.0 // far
		switch req.Mode {
		case "near":
			position = 10.0
		case "normal":
			position = 5.0
		}
		settings = map[string]any{
			"rpiCameraAfMode":       "manual",
			"rpiCameraLensPosition": position,
		}
	}

	if err := s.patchMediaConfig(settings); err != nil {
		s.logger.Error().Err(err).Msg("Media config API error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply focus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Focus set to " + req.Mode})
}

type resolutionRequest struct {
	Mode   string `json:"mode"`
	Secret string `json:"secret"`
}

var resolutionPresets = map[string]struct {
	width, height int
}{
	"240p":  {320, 240},
	"480p":  {640, 480},
	"720p":  {1280, 720},
	"1080p": {1920, 1080},
}

// handleResolution switches the live stream resolution preset.
func (s *Server) handleResolution(c *gin.Context) {
	var req resolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !s.authorizeSecret(c, req.Secret) {
		return
	}

	preset, ok := resolutionPresets[req.Mode]
	if !ok {
		preset = resolutionPresets["720p"]
		req.Mode = "720p"
	}

	settings := map[string]any{
		"rpiCameraWidth":  preset.width,
		"rpiCameraHeight": preset.height,
	}

	if err := s.patchMediaConfig(settings); err != nil {
		s.logger.Error().Err(err).Msg("Media config API error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply resolution"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Resolution changed to " + req.Mode})
}

type captureRequest struct {
	Secret string `json:"secret"`
}

// handleCapture pauses the live stream, takes a full-resolution still, and
// resumes the stream no matter how the capture went.
func (s *Server) handleCapture(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !s.authorizeSecret(c, req.Secret) {
		return
	}

	ctx := c.Request.Context()
	fileName := fmt.Sprintf("capture_%s.jpg", uuid.New().String())
	filePath := filepath.Join(s.cfg.PhotosDir, fileName)

	if _, err := s.runner.Run(ctx, "docker stop mediamtx"); err != nil {
		s.logger.Error().Err(err).Msg("Failed to pause media stream")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pause stream"})
		return
	}

	// Always restart the stream, even if the photo fails.
	defer func() {
		if _, err := s.runner.Run(ctx, "docker start mediamtx"); err != nil {
			s.logger.Error().Err(err).Msg("Failed to restart media stream")
		}
	}()

	captureCmd := fmt.Sprintf(`rpicam-still -n -o %q --width 4056 --height 3040 --immediate --flush`, filePath)
	if _, err := s.runner.Run(ctx, captureCmd); err != nil {
		s.logger.Error().Err(err).Msg("Capture failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	photoURL := fmt.Sprintf("%s://%s/photos/%s", requestScheme(c), c.Request.Host, fileName)

	if s.cfg.StorageEnabled && s.store != nil {
		uploadedURL, err := s.store.UploadFile(ctx, s.cfg.StorageBucket, fileName, filePath, "image/jpeg")
		if err != nil {
			s.logger.Warn().Err(err).Msg("Capture upload failed; serving local copy")
		} else {
			photoURL = uploadedURL
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"url":      photoURL,
		"filename": fileName,
	})
}

func requestScheme(c *gin.Context) string {
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
