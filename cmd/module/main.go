package main

import (
	"cassettereader"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

func main() {
	module.ModularMain(
		resource.APIModel{generic.API, cassettereader.Controller},
		resource.APIModel{sensor.API, cassettereader.ChannelSensor},
		resource.APIModel{sensor.API, cassettereader.ReaderSensor},
	)
}
