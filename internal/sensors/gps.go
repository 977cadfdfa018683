package sensors

import (
	"bufio"
	"context"
	"errors"
	"strings"

	"github.com/adrianmo/go-nmea"
	"github.com/mxl983/mango-rover/internal/models"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// GPSSource reads a position fix from a serial NMEA receiver. It is optional;
// most rovers run without one and the snapshot simply omits the position.
type GPSSource struct {
	Port     string // Serial port to which the GPS device is connected
	BaudRate int    // Baud rate for the serial communication
	Logger   zerolog.Logger
}

func (g *GPSSource) Name() string {
	return "gps"
}

func (g *GPSSource) Collect(ctx context.Context) (Reading, error) {
	pos, err := g.readFix()
	if err != nil {
		return nil, err
	}

	g.Logger.Debug().
		Float64("lat", pos.Latitude).
		Float64("lon", pos.Longitude).
		Msg("GPS fix collected")

	return func(snap *models.StatsSnapshot) {
		snap.Position = &pos
	}, nil
}

// readFix scans NMEA sentences until a GGA fix arrives.
func (g *GPSSource) readFix() (models.Position, error) {
	c := &serial.Config{Name: g.Port, Baud: g.BaudRate}
	s, err := serial.OpenPort(c)
	if err != nil {
		return models.Position{}, err
	}
	defer s.Close()

	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "$GPGGA") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			return models.Position{}, err
		}

		if gga, ok := sentence.(nmea.GGA); ok {
			return models.Position{
				Latitude:  gga.Latitude,
				Longitude: gga.Longitude,
				Accuracy:  float64(gga.HDOP), // HDOP as a proxy for accuracy
			}, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return models.Position{}, err
	}

	return models.Position{}, errors.New("no valid GPS data found")
}
