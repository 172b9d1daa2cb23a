package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:8080", cfg.TargetHost)
	assert.Equal(t, "http://localhost:8016", cfg.FlagdBaseURL())
	assert.Equal(t, time.Second, cfg.ThinkMin)
	assert.Equal(t, 10*time.Second, cfg.ThinkMax)
	assert.False(t, cfg.BrowserTrafficEnabled)
	assert.Empty(t, cfg.BehaviorWeights)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TARGET_HOST", "http://frontend-proxy:8080/")
	t.Setenv("FLAGD_HOST", "flagd")
	t.Setenv("FLAGD_OFREP_PORT", "9016")
	t.Setenv("LOCUST_USERS", "25")
	t.Setenv("LOCUST_SPAWN_RATE", "2.5")
	t.Setenv("THINK_TIME_MIN", "100ms")
	t.Setenv("THINK_TIME_MAX", "300ms")
	t.Setenv("LOCUST_BROWSER_TRAFFIC_ENABLED", "Yes")
	t.Setenv("BEHAVIOR_WEIGHTS", "flood_home=0, browse_product=20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://frontend-proxy:8080", cfg.TargetHost)
	assert.Equal(t, "http://flagd:9016", cfg.FlagdBaseURL())
	assert.Equal(t, 25, cfg.Users)
	assert.Equal(t, 2.5, cfg.SpawnRate)
	assert.Equal(t, 100*time.Millisecond, cfg.ThinkMin)
	assert.True(t, cfg.BrowserTrafficEnabled)
	assert.Equal(t, map[string]int{"flood_home": 0, "browse_product": 20}, cfg.BehaviorWeights)
}

func TestValidate_RejectsInvertedThinkTime(t *testing.T) {
	t.Setenv("THINK_TIME_MIN", "5s")
	t.Setenv("THINK_TIME_MAX", "1s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
}

func TestLoad_DoesNotValidate(t *testing.T) {
	t.Setenv("LOCUST_SPAWN_RATE", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.SpawnRate)
	assert.Error(t, cfg.Validate())
}

func TestLoad_RejectsBadNumbers(t *testing.T) {
	t.Setenv("LOCUST_USERS", "many")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_SpawnRate(t *testing.T) {
	cfg := Config{TargetHost: "http://x", Users: 1, SpawnRate: 0}
	assert.Error(t, cfg.Validate())

	cfg.SpawnRate = 0.5
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Users(t *testing.T) {
	for _, users := range []int{0, -3} {
		cfg := Config{TargetHost: "http://x", Users: users, SpawnRate: 1}
		assert.Error(t, cfg.Validate(), "users %d", users)
	}

	cfg := Config{TargetHost: "http://x", Users: 1, SpawnRate: 1}
	assert.NoError(t, cfg.Validate())
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "yes", "On", " on "} {
		assert.True(t, Truthy(v), v)
	}
	for _, v := range []string{"", "1", "false", "no", "enabled"} {
		assert.False(t, Truthy(v), v)
	}
}

func TestParseWeights_Invalid(t *testing.T) {
	_, err := ParseWeights("index")
	assert.Error(t, err)

	_, err = ParseWeights("index=-1")
	assert.Error(t, err)

	w, err := ParseWeights("")
	require.NoError(t, err)
	assert.Empty(t, w)
}
