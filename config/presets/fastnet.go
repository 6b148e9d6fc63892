package presets

import (
	"time"

	"github.com/chronosync/go-chronosync/config"
)

func init() {
	register("fastnet", fastnet())
}

// fastnet keeps requests short lived so that in-process simulations settle
// quickly.
func fastnet() config.Config {
	conf := config.DefaultConfig()
	conf.Sync.Prefix = "/chronosync/fastnet"
	conf.Sync.DiffLogSize = 16
	conf.Interests.Lifetime = 500 * time.Millisecond
	conf.Interests.CheckPeriod = 100 * time.Millisecond
	conf.Logging.SyncLogicLoggerLevel = "debug"
	return conf
}
