package location

import (
	"bufio"
	"errors"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/tarm/serial"
)

// DeviceSensorProvider reads fixes from a GPS device on a serial port. The
// port is opened lazily on the first GetFix and kept open across calls.
type DeviceSensorProvider struct {
	portName string
	baudRate int
	port     *serial.Port
}

// NewDeviceSensorProvider creates a provider for the given port and baud rate.
func NewDeviceSensorProvider(portName string, baudRate int) *DeviceSensorProvider {
	return &DeviceSensorProvider{
		portName: portName,
		baudRate: baudRate,
	}
}

// GetFix scans NMEA output for the next GGA sentence and returns its
// coordinates, using HDOP as the accuracy proxy.
func (d *DeviceSensorProvider) GetFix() (Fix, error) {
	if d.port == nil {
		cfg := &serial.Config{
			Name:        d.portName,
			Baud:        d.baudRate,
			ReadTimeout: 5 * time.Second,
		}
		port, err := serial.OpenPort(cfg)
		if err != nil {
			return Fix{}, err
		}
		d.port = port
	}

	scanner := bufio.NewScanner(d.port)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "$GPGGA") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			return Fix{}, err
		}
		gga, ok := sentence.(nmea.GGA)
		if !ok {
			continue
		}

		return Fix{
			Latitude:  gga.Latitude,
			Longitude: gga.Longitude,
			AccuracyM: float64(gga.HDOP),
			Timestamp: time.Now(),
		}, nil
	}

	if err := scanner.Err(); err != nil {
		return Fix{}, err
	}
	return Fix{}, errors.New("no valid GPS data found")
}

// Close releases the serial port.
func (d *DeviceSensorProvider) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}
