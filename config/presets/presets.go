// Package presets holds named configurations that replace the defaults.
package presets

import (
	"fmt"
	"sort"

	"github.com/chronosync/go-chronosync/config"
)

var presets = map[string]config.Config{}

func register(name string, conf config.Config) {
	if _, exist := presets[name]; exist {
		panic(fmt.Sprintf("preset %s already registered", name))
	}
	conf.Preset = name
	presets[name] = conf
}

// Options returns the names of the registered presets.
func Options() []string {
	var rst []string
	for name := range presets {
		rst = append(rst, name)
	}
	sort.Strings(rst)
	return rst
}

// Get returns the preset registered under name.
func Get(name string) (config.Config, error) {
	conf, exist := presets[name]
	if !exist {
		return config.Config{}, fmt.Errorf("preset %s is not registered. select one from %v", name, Options())
	}
	return conf, nil
}
