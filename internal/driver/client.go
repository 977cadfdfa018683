package driver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MessageHandler receives one stdout line from the subprocess.
type MessageHandler func(line []byte)

// Client supervises one Python driver script and speaks line-delimited JSON
// with it over stdin/stdout. A crashed script is restarted with a bounded
// budget; a crash never propagates to the daemon.
type Client struct {
	name         string
	pythonPath   string
	script       string
	handler      MessageHandler
	maxRestarts  int
	restartDelay time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	stdin    io.WriteCloser
	cmd      *exec.Cmd
	restarts int
	running  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a supervisor for the given script. handler may be nil
// when stdout lines only need logging.
func NewClient(name, pythonPath, script string, handler MessageHandler,
	maxRestarts int, restartDelay time.Duration, logger zerolog.Logger) *Client {

	if restartDelay == 0 {
		restartDelay = 2 * time.Second
	}

	return &Client{
		name:         name,
		pythonPath:   pythonPath,
		script:       script,
		handler:      handler,
		maxRestarts:  maxRestarts,
		restartDelay: restartDelay,
		logger:       logger.With().Str("driver", name).Logger(),
	}
}

// Start launches the subprocess and its supervision loop.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx != nil {
		return errors.New("driver client is already running")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.spawnLocked(); err != nil {
		c.cancel()
		c.ctx = nil
		c.cancel = nil
		return err
	}

	c.logger.Info().Str("script", c.script).Msg("Driver subprocess started")
	return nil
}

// Stop terminates the subprocess and waits for the supervision loop.
func (c *Client) Stop() error {
	c.mu.Lock()
	if c.ctx == nil {
		c.mu.Unlock()
		return errors.New("driver client is not running")
	}

	c.cancel()
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.ctx = nil
	c.cancel = nil
	c.running = false
	c.mu.Unlock()

	c.logger.Info().Msg("Driver subprocess stopped")
	return nil
}

// Send writes one JSON line to the subprocess stdin.
func (c *Client) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize driver request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.stdin == nil {
		return errors.New("driver subprocess is not running")
	}

	if _, err := c.stdin.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("failed to write to driver stdin: %w", err)
	}
	return nil
}

// spawnLocked starts the process and its pipe readers. Caller holds c.mu.
func (c *Client) spawnLocked() error {
	cmd := exec.Command(c.pythonPath, "-u", c.script)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open driver stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open driver stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open driver stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start driver script %s: %w", c.script, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.running = true

	c.wg.Add(3)
	go c.readStdout(stdout)
	go c.readStderr(stderr)
	go c.waitAndRestart(cmd)

	return nil
}

func (c *Client) readStdout(r io.Reader) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if c.handler != nil {
			// Copy: the scanner reuses its buffer.
			buf := make([]byte, len(line))
			copy(buf, line)
			c.handler(buf)
		} else {
			c.logger.Info().Str("output", string(line)).Msg("Driver message")
		}
	}
}

func (c *Client) readStderr(r io.Reader) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.logger.Error().Str("stderr", scanner.Text()).Msg("Driver error stream")
	}
}

// waitAndRestart reaps the process and restarts it while the restart budget
// lasts. A deliberate Stop never restarts.
func (c *Client) waitAndRestart(cmd *exec.Cmd) {
	defer c.wg.Done()

	err := cmd.Wait()

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	select {
	case <-c.ctx.Done():
		return
	default:
	}

	c.logger.Error().Err(err).Msg("Driver subprocess exited unexpectedly")

	c.mu.Lock()
	if c.restarts >= c.maxRestarts {
		c.mu.Unlock()
		c.logger.Error().Int("restarts", c.restarts).Msg("Driver restart budget exhausted; giving up")
		return
	}
	c.restarts++
	attempt := c.restarts
	c.mu.Unlock()

	select {
	case <-time.After(c.restartDelay):
	case <-c.ctx.Done():
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.ctx.Done():
		return
	default:
	}

	c.logger.Warn().Int("attempt", attempt).Msg("Restarting driver subprocess")
	if err := c.spawnLocked(); err != nil {
		c.logger.Error().Err(err).Msg("Driver restart failed")
	}
}
