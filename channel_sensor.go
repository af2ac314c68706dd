package cassettereader

import (
	"context"
	"fmt"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"cassettereader/reader"
)

var ChannelSensor = resource.NewModel("viamdemo", "cassette-reader", "channel-sensor")

func init() {
	resource.RegisterComponent(sensor.API, ChannelSensor,
		resource.Registration[sensor.Sensor, *ChannelSensorConfig]{
			Constructor: newChannelSensor,
		},
	)
}

type ChannelSensorConfig struct {
	Controller string `json:"controller"`
	Channel    int    `json:"channel"` // 1..5
}

func (cfg *ChannelSensorConfig) Validate(path string) ([]string, []string, error) {
	if cfg.Controller == "" {
		return nil, nil, fmt.Errorf("%s: controller is required", path)
	}
	if cfg.Channel < 1 || cfg.Channel > reader.ChannelCount {
		return nil, nil, fmt.Errorf("%s: channel must be between 1 and %d, got %d", path, reader.ChannelCount, cfg.Channel)
	}
	return []string{controllerDependency(cfg.Controller)}, nil, nil
}

type channelStateProvider interface {
	ChannelState(id int) (map[string]interface{}, error)
}

type channelSensor struct {
	resource.AlwaysRebuild

	name       resource.Name
	logger     logging.Logger
	channel    int
	controller channelStateProvider
}

func newChannelSensor(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (sensor.Sensor, error) {
	conf, err := resource.NativeConfig[*ChannelSensorConfig](rawConf)
	if err != nil {
		return nil, err
	}

	ctrl, err := controllerFromDeps(deps, conf.Controller)
	if err != nil {
		return nil, err
	}

	provider, ok := ctrl.(channelStateProvider)
	if !ok {
		return nil, fmt.Errorf("controller %q does not implement ChannelState", conf.Controller)
	}

	return &channelSensor{
		name:       rawConf.ResourceName(),
		logger:     logger,
		channel:    conf.Channel,
		controller: provider,
	}, nil
}

func (s *channelSensor) Name() resource.Name {
	return s.name
}

func (s *channelSensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	return s.controller.ChannelState(s.channel)
}

func (s *channelSensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, fmt.Errorf("DoCommand not supported on channel-sensor")
}

func (s *channelSensor) Close(context.Context) error {
	return nil
}
