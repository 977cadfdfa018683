package sensors

import (
	"context"
	"regexp"
	"strconv"

	"github.com/mxl983/mango-rover/internal/models"
	"github.com/mxl983/mango-rover/pkg/shell"
	"github.com/rs/zerolog"
)

var signalLevelPattern = regexp.MustCompile(`Signal level=(-?\d+) dBm`)

// WifiSignalSource reads the wireless link strength through iwconfig.
type WifiSignalSource struct {
	Interface string
	Runner    shell.Runner
	Logger    zerolog.Logger
}

func (w *WifiSignalSource) Name() string {
	return "wifi_signal"
}

func (w *WifiSignalSource) Collect(ctx context.Context) (Reading, error) {
	iface := w.Interface
	if iface == "" {
		iface = "wlan0"
	}

	out, err := w.Runner.Run(ctx, "iwconfig "+iface)
	if err != nil {
		return nil, err
	}

	dbm, err := parseSignalLevel(out)
	if err != nil {
		return nil, err
	}

	w.Logger.Debug().Float64("wifi_signal", dbm).Msg("Wifi signal collected")

	return func(snap *models.StatsSnapshot) {
		snap.WifiSignal = dbm
	}, nil
}

func parseSignalLevel(out string) (float64, error) {
	match := signalLevelPattern.FindStringSubmatch(out)
	if match == nil {
		return 0, errEmptyReading
	}
	return strconv.ParseFloat(match[1], 64)
}
