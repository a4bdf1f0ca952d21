package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hdds-io/hdds/internal/qos"
)

func TestResolveProfileReturnsBuiltinUnmodified(t *testing.T) {
	Keys = ProgramConfig{}
	p, err := ResolveProfile("reliable.default")
	require.NoError(t, err)
	require.Equal(t, qos.Reliable, p.Reliability)
	require.Equal(t, qos.Volatile, p.Durability)
}

func TestResolveProfileAppliesOverride(t *testing.T) {
	Keys = ProgramConfig{
		Profiles: map[string]json.RawMessage{
			"reliable.default": json.RawMessage(`{"history-depth": 42}`),
		},
	}
	p, err := ResolveProfile("reliable.default")
	require.NoError(t, err)
	require.Equal(t, qos.Reliable, p.Reliability) // untouched by the override
	require.Equal(t, 42, p.HistoryDepth)
}

func TestResolveProfileUnknownNameFallsBackToDefault(t *testing.T) {
	Keys = ProgramConfig{}
	p, err := ResolveProfile("does-not-exist")
	require.NoError(t, err)
	require.Equal(t, qos.DefaultProfile, p)
}
