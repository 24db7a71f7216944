package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// IIO reads a DHT-class sensor exposed through the Linux industrial I/O
// sysfs interface. Temperature files report millidegrees Celsius, humidity
// files milli-percent relative humidity.
type IIO struct {
	temperaturePath string
	humidityPath    string
}

func NewIIO(temperaturePath, humidityPath string) *IIO {
	return &IIO{
		temperaturePath: temperaturePath,
		humidityPath:    humidityPath,
	}
}

func (s *IIO) Read(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	temperature, err := readMilli(s.temperaturePath)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: temperature: %v", ErrReadFailed, err)
	}
	humidity, err := readMilli(s.humidityPath)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: humidity: %v", ErrReadFailed, err)
	}

	return temperature, humidity, nil
}

func readMilli(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(raw) / 1000.0, nil
}
