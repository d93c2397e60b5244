package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, EnvDevelopment, cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, 2, cfg.Retention.SweepHour)
	require.Equal(t, "720h0m0s", cfg.Retention.Window.String())
}

func TestLoadSweepOnStartDefaultsByEnv(t *testing.T) {
	t.Run("development sweeps on start", func(t *testing.T) {
		t.Setenv("ENV", EnvDevelopment)

		cfg, err := Load()
		require.NoError(t, err)
		require.True(t, cfg.Retention.SweepOnStart)
	})

	t.Run("production waits for the schedule", func(t *testing.T) {
		t.Setenv("ENV", EnvProduction)

		cfg, err := Load()
		require.NoError(t, err)
		require.False(t, cfg.Retention.SweepOnStart)
	})

	t.Run("explicit flag overrides the environment default", func(t *testing.T) {
		t.Setenv("ENV", EnvDevelopment)
		t.Setenv("RETENTION_SWEEP_ON_START", "false")

		cfg, err := Load()
		require.NoError(t, err)
		require.False(t, cfg.Retention.SweepOnStart)

		t.Setenv("ENV", EnvProduction)
		t.Setenv("RETENTION_SWEEP_ON_START", "true")

		cfg, err = Load()
		require.NoError(t, err)
		require.True(t, cfg.Retention.SweepOnStart)
	})
}

func TestLoadClampsSweepHour(t *testing.T) {
	t.Setenv("ENV", EnvDevelopment)
	t.Setenv("RETENTION_SWEEP_HOUR", "27")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Retention.SweepHour)
}
