package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "soapd dev"))
}

func TestServeCommand_MissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"serve", "--config", t.TempDir() + "/missing.yaml"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestServices(t *testing.T) {
	svcs, err := services(slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.Contains(t, svcs, "calculator")
	assert.Equal(t, "CalculatorService", svcs["calculator"].Description.Name)
}
