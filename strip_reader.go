package cassettereader

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/sensor"

	"cassettereader/reader"
)

const defaultPositiveRatio = 1.0

// sensorStripReader evaluates a cassette from a sensor that reads the test
// lines. Each substance is reported under its name or its short label, as a
// "positive"/"negative" string, a bool (true is positive), or a test/control
// line intensity ratio where values under the threshold are positive.
type sensorStripReader struct {
	sensor    sensor.Sensor
	threshold float64
}

func newSensorStripReader(s sensor.Sensor, threshold float64) *sensorStripReader {
	if threshold <= 0 {
		threshold = defaultPositiveRatio
	}
	return &sensorStripReader{sensor: s, threshold: threshold}
}

// Evaluate ignores the simulated outcome; the strip decides.
func (r *sensorStripReader) Evaluate(ctx context.Context, panel reader.Panel, _ reader.Outcome) ([]reader.SubstanceResult, error) {
	readings, err := r.sensor.Readings(ctx, map[string]interface{}{
		"cassette_type": string(panel.Type),
	})
	if err != nil {
		return nil, err
	}

	results := make([]reader.SubstanceResult, 0, len(panel.Substances))
	for _, name := range panel.Substances {
		val, ok := readings[name]
		if !ok {
			val, ok = readings[reader.ShortLabel(name)]
		}
		if !ok {
			return nil, fmt.Errorf("strip readings missing %q", name)
		}
		outcome, err := r.classify(name, val)
		if err != nil {
			return nil, err
		}
		results = append(results, reader.SubstanceResult{Name: name, Result: outcome})
	}
	return results, nil
}

func (r *sensorStripReader) classify(name string, val interface{}) (reader.Outcome, error) {
	var ratio float64
	switch v := val.(type) {
	case string:
		o := reader.Outcome(v)
		if !o.Valid() {
			return "", fmt.Errorf("strip reading %q has unknown result %q", name, v)
		}
		return o, nil
	case bool:
		if v {
			return reader.OutcomePositive, nil
		}
		return reader.OutcomeNegative, nil
	case float64:
		ratio = v
	case int:
		ratio = float64(v)
	case int64:
		ratio = float64(v)
	default:
		return "", fmt.Errorf("strip reading %q is not a result or ratio: %T", name, val)
	}
	if ratio < r.threshold {
		return reader.OutcomePositive, nil
	}
	return reader.OutcomeNegative, nil
}
