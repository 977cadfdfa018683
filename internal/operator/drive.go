package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
)

// KeyState tracks which direction keys are currently held.
type KeyState struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyState returns an empty key state.
func NewKeyState() *KeyState {
	return &KeyState{held: make(map[string]struct{})}
}

// Press marks a key held.
func (k *KeyState) Press(key string) {
	k.mu.Lock()
	k.held[key] = struct{}{}
	k.mu.Unlock()
}

// Release marks a key no longer held.
func (k *KeyState) Release(key string) {
	k.mu.Lock()
	delete(k.held, key)
	k.mu.Unlock()
}

// Keys returns the currently held keys, unordered.
func (k *KeyState) Keys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()

	keys := make([]string, 0, len(k.held))
	for key := range k.held {
		keys = append(keys, key)
	}
	return keys
}

// DriveSync evaluates the held-key set on a fixed interval and posts it to
// the rover only when the normalized set changed, suppressing redundant
// sends while a key is simply being held down.
type DriveSync struct {
	endpoint   string
	interval   time.Duration
	keys       *KeyState
	httpClient *http.Client
	logger     zerolog.Logger

	mu       sync.Mutex
	lastSent []string
	sentOnce bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriveSync initializes a new DriveSync.
func NewDriveSync(endpoint string, interval time.Duration, keys *KeyState, logger zerolog.Logger) *DriveSync {
	return &DriveSync{
		endpoint:   endpoint,
		interval:   interval,
		keys:       keys,
		httpClient: &http.Client{Timeout: 2 * time.Second},
		logger:     logger,
	}
}

// Start launches the sync loop.
func (d *DriveSync) Start() error {
	if d.ctx != nil {
		return errors.New("drive sync is already running")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runSyncLoop()
	}()

	return nil
}

// Stop tears the sync loop down.
func (d *DriveSync) Stop() error {
	if d.ctx == nil {
		return errors.New("drive sync is not running")
	}

	d.cancel()
	d.wg.Wait()

	d.ctx = nil
	d.cancel = nil
	return nil
}

func (d *DriveSync) runSyncLoop() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.evaluate()
		case <-d.ctx.Done():
			return
		}
	}
}

// evaluate performs one dedupe-and-send cycle.
func (d *DriveSync) evaluate() {
	keys := models.NormalizeDriveKeys(d.keys.Keys())

	d.mu.Lock()
	unchanged := d.sentOnce && equalKeys(d.lastSent, keys)
	d.mu.Unlock()

	if unchanged {
		return
	}

	if err := d.post(keys); err != nil {
		// Leave lastSent untouched so the next tick retries.
		d.logger.Warn().Err(err).Msg("Drive command send failed")
		return
	}

	d.mu.Lock()
	d.lastSent = keys
	d.sentOnce = true
	d.mu.Unlock()
}

func (d *DriveSync) post(keys []string) error {
	payload, err := json.Marshal(models.DriveCommand{Keys: keys})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(d.ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("drive endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
