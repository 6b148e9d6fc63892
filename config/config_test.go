package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	conf := DefaultConfig()
	require.NoError(t, conf.Validate())
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load(viper.New(), "", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), conf)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.toml"), DefaultConfig())
	require.ErrorContains(t, err, "read config file")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[sync]
prefix = "/test/sync"
digest-algorithm = "blake3"
diff-log-size = 7

[interests]
lifetime = "1500ms"

[logging]
logic = "debug"
`), 0o600))

	conf, err := Load(viper.New(), path, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, path, conf.ConfigFile)
	require.Equal(t, "/test/sync", conf.Sync.Prefix)
	require.Equal(t, "blake3", conf.Sync.DigestAlgorithm)
	require.Equal(t, 7, conf.Sync.DiffLogSize)
	require.Equal(t, 1500*time.Millisecond, conf.Interests.Lifetime)
	require.Equal(t, DefaultConfig().Interests.CheckPeriod, conf.Interests.CheckPeriod)
	require.Equal(t, "debug", conf.Logging.SyncLogicLoggerLevel)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("CHRONOSYNC_SYNC_DIFF_LOG_SIZE", "42")
	t.Setenv("CHRONOSYNC_INTERESTS_CHECK_PERIOD", "250ms")
	conf, err := Load(viper.New(), "", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 42, conf.Sync.DiffLogSize)
	require.Equal(t, 250*time.Millisecond, conf.Interests.CheckPeriod)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		desc   string
		modify func(*Config)
	}{
		{desc: "algorithm", modify: func(c *Config) { c.Sync.DigestAlgorithm = "md5" }},
		{desc: "order", modify: func(c *Config) { c.Sync.SeqOrder = "random" }},
		{desc: "policy", modify: func(c *Config) { c.Sync.NamePolicy = "sometimes" }},
		{desc: "prefix", modify: func(c *Config) { c.Sync.Prefix = "relative" }},
		{desc: "log size", modify: func(c *Config) { c.Sync.DiffLogSize = 0 }},
		{desc: "lifetime", modify: func(c *Config) { c.Interests.Lifetime = 0 }},
		{desc: "push period", modify: func(c *Config) {
			c.Metrics.PushURL = "http://localhost:9091"
			c.Metrics.PushPeriod = 0
		}},
		{desc: "encoder", modify: func(c *Config) { c.Logging.Encoder = "xml" }},
		{desc: "level", modify: func(c *Config) { c.Logging.StateLoggerLevel = "loud" }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			conf := DefaultConfig()
			tc.modify(&conf)
			require.Error(t, conf.Validate())
		})
	}
}

func TestLoadFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/chronosync.yaml", []byte(`
sync:
  seq-order: same-session
  name-policy: evict-unreferenced
metrics:
  push-url: http://gateway:9091
  push-period: 30s
`), 0o600))
	vip := viper.New()
	vip.SetFs(fs)

	conf, err := Load(vip, "/etc/chronosync.yaml", DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "same-session", conf.Sync.SeqOrder)
	require.Equal(t, "evict-unreferenced", conf.Sync.NamePolicy)
	require.Equal(t, "http://gateway:9091", conf.Metrics.PushURL)
	require.Equal(t, 30*time.Second, conf.Metrics.PushPeriod)
}
