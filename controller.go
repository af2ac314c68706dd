package cassettereader

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"

	"cassettereader/reader"
)

var Controller = resource.NewModel("viamdemo", "cassette-reader", "controller")

func init() {
	resource.RegisterService(generic.API, Controller,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newCassetteReaderController,
		},
	)
}

type Config struct {
	TempWaitSec         int                 `json:"temp_wait_sec,omitempty"`
	IncubationSec       int                 `json:"incubation_sec,omitempty"`
	ReadingSec          int                 `json:"reading_sec,omitempty"`
	AlertWindowSec      int                 `json:"alert_window_sec,omitempty"`
	PositiveProbability *float64            `json:"positive_probability,omitempty"` // simulator only (default: 0.4)
	Cassettes           map[string][]string `json:"cassettes,omitempty"`            // cassette type -> ordered substances
	StripReader         string              `json:"strip_reader,omitempty"`         // optional: sensor that reads the strip
	PositiveRatio       float64             `json:"positive_ratio_threshold,omitempty"`
	TickMs              int                 `json:"tick_ms,omitempty"` // wall-clock length of one tick (default: 1000)
	ManualTicks         bool                `json:"manual_ticks,omitempty"`
	RecentRoutes        []string            `json:"recent_routes,omitempty"`    // quick picks for the route field
	RecentOperators     []string            `json:"recent_operators,omitempty"` // quick picks for the operator field
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	var err error
	if cfg.TickMs < 0 {
		err = multierr.Append(err, fmt.Errorf("%s: tick_ms must not be negative", path))
	}
	if cfg.PositiveRatio < 0 {
		err = multierr.Append(err, fmt.Errorf("%s: positive_ratio_threshold must not be negative", path))
	}
	if rerr := cfg.readerConfig().Validate(); rerr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", path, rerr))
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.StripReader != "" {
		return []string{cfg.StripReader}, nil, nil
	}
	return nil, nil, nil
}

// readerConfig fills unset attributes with the engine defaults.
func (cfg *Config) readerConfig() reader.Config {
	rc := reader.DefaultConfig()
	for _, f := range []struct {
		v   int
		dst *int
	}{
		{cfg.TempWaitSec, &rc.Timing.TempWait},
		{cfg.IncubationSec, &rc.Timing.Incubation},
		{cfg.ReadingSec, &rc.Timing.Reading},
		{cfg.AlertWindowSec, &rc.Timing.AlertWindow},
	} {
		if f.v != 0 {
			*f.dst = f.v
		}
	}
	if cfg.PositiveProbability != nil {
		rc.PositiveProbability = *cfg.PositiveProbability
	}
	if len(cfg.RecentRoutes) > 0 {
		rc.RecentRoutes = cfg.RecentRoutes
	}
	if len(cfg.RecentOperators) > 0 {
		rc.RecentOperators = cfg.RecentOperators
	}
	if len(cfg.Cassettes) > 0 {
		rc.Panels = nil
		for _, t := range slices.Sorted(maps.Keys(cfg.Cassettes)) {
			rc.Panels = append(rc.Panels, reader.Panel{
				Type:       reader.CassetteType(t),
				Substances: cfg.Cassettes[t],
			})
		}
	}
	return rc
}

func (cfg *Config) tickInterval() time.Duration {
	if cfg.TickMs <= 0 {
		return time.Second
	}
	return time.Duration(cfg.TickMs) * time.Millisecond
}

type cassetteReaderController struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config

	mu     sync.Mutex
	engine *reader.Engine

	ticker     *clock.Ticker
	cancelCtx  context.Context
	cancelFunc func()
	loopDone   sync.WaitGroup
}

func newCassetteReaderController(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}

	return NewController(ctx, deps, rawConf.ResourceName(), conf, logger)
}

func NewController(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	var evaluator reader.Evaluator
	if conf.StripReader != "" {
		strip, err := sensor.FromDependencies(deps, conf.StripReader)
		if err != nil {
			return nil, fmt.Errorf("getting strip_reader sensor: %w", err)
		}
		evaluator = newSensorStripReader(strip, conf.PositiveRatio)
		logger.Infof("cassette reader using strip reader %q", conf.StripReader)
	} else {
		logger.Infof("cassette reader using simulated results")
	}

	return newController(name, conf, evaluator, clock.New(), logger)
}

func newController(name resource.Name, conf *Config, evaluator reader.Evaluator, clk clock.Clock, logger logging.Logger) (*cassetteReaderController, error) {
	var opts []reader.Option
	if evaluator != nil {
		opts = append(opts, reader.WithEvaluator(evaluator))
	}
	engine, err := reader.NewEngine(conf.readerConfig(), logger, opts...)
	if err != nil {
		return nil, err
	}
	engine.OnTransition(func(t reader.Transition) {
		if t.To == reader.StateComplete {
			logger.Infof("channel %d complete: group %s", t.ChannelID, t.GroupResult)
			return
		}
		logger.Debugf("channel %d: %s -> %s", t.ChannelID, t.From, t.To)
	})

	cancelCtx, cancelFunc := context.WithCancel(context.Background())

	c := &cassetteReaderController{
		name:       name,
		logger:     logger,
		cfg:        conf,
		engine:     engine,
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}

	if !conf.ManualTicks {
		// created here so a mock clock sees the ticker before the first Add
		c.ticker = clk.Ticker(conf.tickInterval())
		c.loopDone.Add(1)
		go c.tickLoop()
		logger.Infof("tick loop started (interval: %v)", conf.tickInterval())
	}
	return c, nil
}

func (c *cassetteReaderController) Name() resource.Name {
	return c.name
}

func (c *cassetteReaderController) tickLoop() {
	defer c.loopDone.Done()
	defer c.ticker.Stop()

	for {
		select {
		case <-c.cancelCtx.Done():
			return
		case <-c.ticker.C:
			c.mu.Lock()
			c.engine.Tick(c.cancelCtx)
			c.mu.Unlock()
		}
	}
}

func (c *cassetteReaderController) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'command' field")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch command {
	case "status":
		return c.stateLocked(), nil
	case "tick":
		return c.handleTick(ctx, cmd)
	}

	id, err := intArg(cmd, "channel")
	if err != nil {
		return nil, err
	}
	if err := c.dispatch(reader.Command(command), id, cmd); err != nil {
		return nil, err
	}
	snap, err := c.engine.Channel(id)
	if err != nil {
		return nil, err
	}
	return snap.Readings(), nil
}

func (c *cassetteReaderController) dispatch(command reader.Command, id int, cmd map[string]interface{}) error {
	switch command {
	case reader.CmdInsert:
		return c.engine.Insert(id, reader.Cassette{
			Type:    reader.CassetteType(stringArg(cmd, "cassette_type")),
			Outcome: reader.Outcome(stringArg(cmd, "outcome")),
			Used:    boolArg(cmd, "used"),
		})
	case reader.CmdRemove:
		return c.engine.Remove(id)
	case reader.CmdConfigure:
		return c.engine.Configure(id)
	case reader.CmdCancelConfig:
		return c.engine.CancelConfiguration(id)
	case reader.CmdStartTest:
		return c.engine.StartTest(id, reader.TestConfig{
			Scenario:     reader.Scenario(stringArg(cmd, "scenario")),
			CassetteType: reader.CassetteType(stringArg(cmd, "cassette_type")),
			Route:        stringArg(cmd, "route"),
			OperatorID:   stringArg(cmd, "operator_id"),
			Processing:   reader.Processing(stringArg(cmd, "processing")),
		})
	case reader.CmdStartNextTest:
		return c.engine.StartNextTest(id)
	case reader.CmdDecisionAbort:
		return c.engine.DecisionAbort(id)
	case reader.CmdDecisionContinue:
		return c.engine.DecisionContinue(id)
	case reader.CmdStop:
		return c.engine.Stop(id)
	case reader.CmdStopConfirm:
		return c.engine.StopConfirm(id)
	case reader.CmdStopCancel:
		return c.engine.StopCancel(id)
	case reader.CmdViewDetails:
		return c.engine.ViewDetails(id)
	case reader.CmdCloseDetail:
		return c.engine.CloseDetail(id)
	case reader.CmdRetry:
		return c.engine.Retry(id)
	case reader.CmdAbort:
		return c.engine.Abort(id)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *cassetteReaderController) handleTick(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if !c.cfg.ManualTicks {
		return nil, fmt.Errorf("tick is only available with manual_ticks enabled")
	}
	count := 1
	if _, ok := cmd["count"]; ok {
		n, err := intArg(cmd, "count")
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("count must be positive, got %d", n)
		}
		count = n
	}
	for i := 0; i < count; i++ {
		c.engine.Tick(ctx)
	}
	return c.stateLocked(), nil
}

// GetState returns the whole reader: every channel plus the modal record.
func (c *cassetteReaderController) GetState() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// ChannelState returns one channel's snapshot.
func (c *cassetteReaderController) ChannelState(id int) (map[string]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, err := c.engine.Channel(id)
	if err != nil {
		return nil, err
	}
	return snap.Readings(), nil
}

func (c *cassetteReaderController) stateLocked() map[string]interface{} {
	snaps := c.engine.Channels()
	channels := make([]interface{}, len(snaps))
	states := make(map[string]interface{}, len(snaps))
	for i, s := range snaps {
		channels[i] = s.Readings()
		states[fmt.Sprintf("ch%d", s.ID)] = string(s.State)
	}
	cfg := c.engine.Config()
	return map[string]interface{}{
		"channels":         channels,
		"states":           states,
		"modal":            modalReadings(c.engine.Modal()),
		"recent_routes":    stringList(cfg.RecentRoutes),
		"recent_operators": stringList(cfg.RecentOperators),
	}
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func modalReadings(m reader.ModalSnapshot) map[string]interface{} {
	queue := make([]interface{}, len(m.Queue))
	for i, q := range m.Queue {
		queue[i] = map[string]interface{}{
			"kind":    string(q.Kind),
			"channel": q.ChannelID,
			"variant": string(q.Variant),
		}
	}
	out := map[string]interface{}{
		"active":       m.Active != nil,
		"queue":        queue,
		"queue_length": len(queue),
	}
	if m.Active != nil {
		out["kind"] = string(m.Active.Kind)
		out["channel"] = m.Active.ChannelID
		out["variant"] = string(m.Active.Variant)
	}
	return out
}

func (c *cassetteReaderController) Close(context.Context) error {
	c.cancelFunc()
	c.loopDone.Wait()
	return nil
}

func intArg(cmd map[string]interface{}, key string) (int, error) {
	switch v := cmd[key].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%q must be a whole number, got %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case nil:
		return 0, fmt.Errorf("missing %q field", key)
	default:
		return 0, fmt.Errorf("%q is not numeric: %T", key, v)
	}
}

func stringArg(cmd map[string]interface{}, key string) string {
	s, _ := cmd[key].(string)
	return s
}

func boolArg(cmd map[string]interface{}, key string) bool {
	b, _ := cmd[key].(bool)
	return b
}

// controllerFromDeps resolves the generic-service controller a sensor projects.
func controllerFromDeps(deps resource.Dependencies, controller string) (resource.Resource, error) {
	controllerName := resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), controller)
	ctrl, ok := deps[controllerName]
	if !ok {
		return nil, fmt.Errorf("controller %q not found in dependencies", controller)
	}
	return ctrl, nil
}

// controllerDependency is the full resource name Viam needs for a generic service dependency.
func controllerDependency(controller string) string {
	return resource.NewName(resource.APINamespaceRDK.WithServiceType("generic"), controller).String()
}
