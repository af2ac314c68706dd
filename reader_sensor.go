package cassettereader

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"cassettereader/reader"
)

var ReaderSensor = resource.NewModel("viamdemo", "cassette-reader", "reader-sensor")

func init() {
	resource.RegisterComponent(sensor.API, ReaderSensor,
		resource.Registration[sensor.Sensor, *ReaderSensorConfig]{
			Constructor: newReaderSensor,
		},
	)
}

type ReaderSensorConfig struct {
	Controller string `json:"controller"`
}

func (cfg *ReaderSensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Controller == "" {
		return nil, nil, fmt.Errorf("%s: controller is required", path)
	}
	return []string{controllerDependency(cfg.Controller)}, nil, nil
}

type stateProvider interface {
	GetState() map[string]interface{}
}

// readerSensor exposes the reader-wide view (modal record, queue, state
// labels) for data capture.
type readerSensor struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	controller stateProvider
}

func newReaderSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*ReaderSensorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	ctrl, err := controllerFromDeps(deps, conf.Controller)
	if err != nil {
		return nil, err
	}

	provider, ok := ctrl.(stateProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q does not implement GetState", conf.Controller)
	}

	return &readerSensor{
		name:       rawConf.ResourceName(),
		logger:     logger,
		controller: provider,
	}, nil
}

func (s *readerSensor) Name() resource.Name {
	return s.name
}

// Readings keeps the modal record and per-channel state labels from the
// controller state and adds how many channels sit in each state. Full channel
// snapshots are left to the channel sensors.
func (s *readerSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	state := s.controller.GetState()
	states, ok := state["states"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("controller state is missing channel states")
	}

	counts := make(map[reader.State]int, len(reader.AllStates))
	for _, label := range states {
		if l, ok := label.(string); ok {
			counts[reader.State(l)]++
		}
	}
	stateCounts := make(map[string]interface{}, len(reader.AllStates))
	for _, st := range reader.AllStates {
		stateCounts[string(st)] = counts[st]
	}

	return map[string]interface{}{
		"states":       states,
		"modal":        state["modal"],
		"state_counts": stateCounts,
	}, nil
}

func (s *readerSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported on reader-sensor")
}

func (s *readerSensor) Close(context.Context) error {
	return nil
}
