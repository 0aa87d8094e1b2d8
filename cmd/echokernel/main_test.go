package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
provider:
  type: mock
embedding:
  type: hash
  dimensions: 64
memory:
  type: inmemory
agents:
  - name: writer
    type: model
    description: Writes things
  - name: refiner
    type: loop
    inner: writer
    max_steps: 2
  - name: desk
    type: router
    agents: [writer, refiner]
    default: writer
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "echokernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	interactiveAgent = ""
	rootCmd.SetArgs(append([]string{"--no-dotenv", "--config", path}, args...))

	err := rootCmd.Execute()
	return out.String(), err
}

func TestAgentsCommand(t *testing.T) {
	out, err := execute(t, "agents")
	require.NoError(t, err)
	assert.Contains(t, out, "writer")
	assert.Contains(t, out, "Writes things")
	assert.Contains(t, out, "refiner")
	assert.Contains(t, out, "[routes: writer, refiner]")
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "--agent", "writer", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello\n", out)
}

func TestRunCommandUnknownAgent(t *testing.T) {
	_, err := execute(t, "run", "--agent", "nobody", "hello")
	require.Error(t, err)
}

func TestGenerateCommand(t *testing.T) {
	out, err := execute(t, "generate", "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "Mock response to: ping")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK: 3 agents")
}

func TestInteractiveCommand(t *testing.T) {
	input := "hello\nagent nobody\nagent writer\nwrite\nagents\nagent\nquit\nnever sent\n"
	out, err := executeWithInput(t, input, "interactive")
	require.NoError(t, err)

	assert.Contains(t, out, "echokernel> Mock response to: hello")
	assert.Contains(t, out, `Error: `)
	assert.Contains(t, out, "writer> Mock response to: write")
	assert.Contains(t, out, "writer, refiner, desk")
	assert.Contains(t, out, "Goodbye!")
	assert.NotContains(t, out, "never sent")
}

func TestInteractiveCommandEOF(t *testing.T) {
	out, err := executeWithInput(t, "ping\n", "interactive", "--agent", "writer")
	require.NoError(t, err)
	assert.Contains(t, out, "writer> Mock response to: ping")
	assert.NotContains(t, out, "Goodbye!")
}
