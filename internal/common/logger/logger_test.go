package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupParsesLevel(t *testing.T) {
	defer Setup("info", "json")

	Setup("warn", "json")
	require.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	require.False(t, console)
}

func TestSetupFallsBackToInfoOnBadLevel(t *testing.T) {
	defer Setup("info", "json")

	Setup("chatty", "json")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestSetupSelectsConsoleFormat(t *testing.T) {
	defer Setup("info", "json")

	Setup("info", "console")
	require.True(t, console)
	require.NotNil(t, New("test"))
}
