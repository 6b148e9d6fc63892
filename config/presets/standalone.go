package presets

import (
	"github.com/chronosync/go-chronosync/config"
	"github.com/chronosync/go-chronosync/digest"
	"github.com/chronosync/go-chronosync/names"
)

func init() {
	register("standalone", standalone())
}

func standalone() config.Config {
	conf := config.DefaultConfig()
	conf.Sync.Prefix = "/chronosync/standalone"
	conf.Sync.DigestAlgorithm = digest.Blake3.String()
	conf.Sync.NamePolicy = names.EvictUnreferenced.String()
	conf.Sync.SeqOrder = "same-session"
	return conf
}
