package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashrajoria/E-Commerce-loadgen/config"
)

func TestOverrides_OnlyChangedFlagsApply(t *testing.T) {
	root := NewRootCmd()
	require.NoError(t, root.ParseFlags([]string{"--users", "25", "-t", "90s"}))

	cfg := config.Config{Users: 10, SpawnRate: 2, TargetHost: "http://frontend:8080", StatusAddr: ":8089"}
	var o overrides
	o.users, _ = root.Flags().GetInt("users")
	o.runTime, _ = root.Flags().GetDuration("run-time")
	o.apply(root, &cfg)

	assert.Equal(t, 25, cfg.Users)
	assert.Equal(t, 90*time.Second, cfg.RunTime)
	assert.Equal(t, 2.0, cfg.SpawnRate)
	assert.Equal(t, "http://frontend:8080", cfg.TargetHost)
	assert.Equal(t, ":8089", cfg.StatusAddr)
}

func TestRootCmd_Flags(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"users", "spawn-rate", "host", "run-time", "status-addr"} {
		assert.NotNil(t, root.Flags().Lookup(name), name)
	}
}

func overridesFrom(t *testing.T, args ...string) (overrides, *cobra.Command) {
	t.Helper()
	root := NewRootCmd()
	require.NoError(t, root.ParseFlags(args))
	f := root.Flags()
	var o overrides
	var err error
	o.users, err = f.GetInt("users")
	require.NoError(t, err)
	o.spawnRate, err = f.GetFloat64("spawn-rate")
	require.NoError(t, err)
	o.host, err = f.GetString("host")
	require.NoError(t, err)
	o.runTime, err = f.GetDuration("run-time")
	require.NoError(t, err)
	o.statusAddr, err = f.GetString("status-addr")
	require.NoError(t, err)
	return o, root
}

func TestLoad_FlagOverridesInvalidEnvironment(t *testing.T) {
	t.Setenv("LOCUST_SPAWN_RATE", "0")
	o, root := overridesFrom(t, "--spawn-rate", "5")

	cfg, err := o.load(root)

	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.SpawnRate)
}

func TestLoad_InvalidEnvironmentWithoutOverride(t *testing.T) {
	t.Setenv("LOCUST_SPAWN_RATE", "0")
	o, root := overridesFrom(t)

	_, err := o.load(root)

	assert.Error(t, err)
}

func TestLoad_HostFlagTrailingSlash(t *testing.T) {
	o, root := overridesFrom(t, "--host", "http://shop:8080//")

	cfg, err := o.load(root)

	require.NoError(t, err)
	assert.Equal(t, "http://shop:8080", cfg.TargetHost)
}
