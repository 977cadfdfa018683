package driver

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops a shell script the client can supervise in place of the
// real Python drivers.
func writeScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "driver.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineRecorder) handle(line []byte) {
	l.mu.Lock()
	l.lines = append(l.lines, string(line))
	l.mu.Unlock()
}

func (l *lineRecorder) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// TestClient_ReceivesStdoutLines tests the stdout line delivery path.
func TestClient_ReceivesStdoutLines(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\necho hello\necho world\nsleep 30\n")

	recorder := &lineRecorder{}
	c := NewClient("test", "/bin/sh", script, recorder.handle, 0, time.Second, zerolog.Nop())

	require.NoError(t, c.Start())
	defer c.Stop()

	assert.Eventually(t, func() bool { return recorder.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	recorder.mu.Lock()
	assert.Equal(t, []string{"hello", "world"}, recorder.lines)
	recorder.mu.Unlock()
}

// TestClient_SendWritesStdin tests the JSON line protocol on stdin. The
// script echoes stdin back so delivery is observable on stdout.
func TestClient_SendWritesStdin(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\ncat\n")

	recorder := &lineRecorder{}
	c := NewClient("test", "/bin/sh", script, recorder.handle, 0, time.Second, zerolog.Nop())

	require.NoError(t, c.Start())
	defer c.Stop()

	require.NoError(t, c.Send(models.DriverRequest{Command: "get_voltage"}))

	assert.Eventually(t, func() bool { return recorder.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	recorder.mu.Lock()
	assert.JSONEq(t, `{"command":"get_voltage"}`, recorder.lines[0])
	recorder.mu.Unlock()
}

// TestClient_SendFailsWhenStopped tests that a dead subprocess surfaces as
// an error rather than a silent drop.
func TestClient_SendFailsWhenStopped(t *testing.T) {
	c := NewClient("test", "/bin/sh", "/nonexistent.sh", nil, 0, time.Second, zerolog.Nop())

	err := c.Send([]string{"w"})
	assert.Error(t, err)
	assert.Equal(t, "driver subprocess is not running", err.Error())
}

// TestClient_RestartsWithinBudget tests crash supervision: the script exits
// immediately and gets restarted until the budget runs out.
func TestClient_RestartsWithinBudget(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 1\n")

	c := NewClient("test", "/bin/sh", script, nil, 2, 10*time.Millisecond, zerolog.Nop())

	require.NoError(t, c.Start())
	defer c.Stop()

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.restarts == 2
	}, 5*time.Second, 10*time.Millisecond)
}

// TestClient_StartStop tests the lifecycle guards.
func TestClient_StartStop(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nsleep 30\n")

	c := NewClient("test", "/bin/sh", script, nil, 0, time.Second, zerolog.Nop())

	err := c.Stop()
	assert.Error(t, err)

	require.NoError(t, c.Start())
	err = c.Start()
	assert.Error(t, err)
	assert.Equal(t, "driver client is already running", err.Error())

	require.NoError(t, c.Stop())
}

// TestVoltageMonitor_ParsesReadings tests the stdout JSON parsing path into
// the observer, including malformed lines being dropped.
func TestVoltageMonitor_ParsesReadings(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\n"+
		`echo '{"type":"voltage","value":11.9,"distance":42.5}'`+"\n"+
		"echo 'not json'\n"+
		`echo '{"type":"voltage","value":12.1,"distance":40.0}'`+"\n"+
		"sleep 30\n")

	observer := &recordingObserver{}
	v := NewVoltageMonitor("/bin/sh", script, observer, 0, time.Second, zerolog.Nop())

	require.NoError(t, v.Start())
	defer v.Stop()

	assert.Eventually(t, func() bool { return observer.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	observer.mu.Lock()
	assert.Equal(t, 11.9, observer.readings[0].Value)
	assert.Equal(t, 42.5, observer.readings[0].Distance)
	assert.Equal(t, 12.1, observer.readings[1].Value)
	observer.mu.Unlock()
}

type recordingObserver struct {
	mu       sync.Mutex
	readings []models.DriverReading
}

func (r *recordingObserver) Observe(reading models.DriverReading) {
	r.mu.Lock()
	r.readings = append(r.readings, reading)
	r.mu.Unlock()
}

func (r *recordingObserver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}
