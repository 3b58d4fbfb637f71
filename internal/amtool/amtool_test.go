package amtool_test

import (
	"context"
	"errors"
	"testing"

	"skype-alertbot/internal/amtool"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// recordingRunner captures the invocation instead of executing anything.
type recordingRunner struct {
	name string
	args []string
	out  []byte
	err  error
}

func (r *recordingRunner) Run(_ context.Context, name string, args []string) ([]byte, error) {
	r.name = name
	r.args = args
	return r.out, r.err
}

func TestRunPassesAlertmanagerURLFirst(t *testing.T) {
	runner := &recordingRunner{out: []byte("3 alerts firing\n")}
	inv := amtool.NewWithRunner("http://am:9093", []string{"live:alice"}, runner, testLogger())

	out, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	require.NoError(t, err)
	assert.Equal(t, "3 alerts firing\n", out)
	assert.Equal(t, amtool.DefaultTool, runner.name)
	assert.Equal(t, []string{"--alertmanager.url", "http://am:9093", "alert", "query"}, runner.args)
}

func TestRunDeniesUnknownSender(t *testing.T) {
	runner := &recordingRunner{}
	inv := amtool.NewWithRunner("http://am:9093", []string{"live:alice"}, runner, testLogger())

	_, err := inv.Run(context.Background(), "live:mallory", []string{"alert", "query"})
	assert.ErrorIs(t, err, amtool.ErrNotAllowed)
	assert.Empty(t, runner.name, "subprocess must not run for denied senders")
}

func TestRunEmptyAllowListDeniesEveryone(t *testing.T) {
	inv := amtool.NewWithRunner("http://am:9093", nil, &recordingRunner{}, testLogger())

	_, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	assert.ErrorIs(t, err, amtool.ErrNotAllowed)
}

func TestRunRequiresAlertmanagerURL(t *testing.T) {
	inv := amtool.NewWithRunner("", []string{"live:alice"}, &recordingRunner{}, testLogger())

	_, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	assert.ErrorIs(t, err, amtool.ErrNoAlertmanager)
}

func TestRunRejectsUnsafeArguments(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "flag injection", args: []string{"alert", "query", "--output=json"}},
		{name: "shell metacharacters", args: []string{"alert", "query", "a;rm"}},
		{name: "spaces smuggled in", args: []string{"alert", "query", "a b"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &recordingRunner{}
			inv := amtool.NewWithRunner("http://am:9093", []string{"live:alice"}, runner, testLogger())

			_, err := inv.Run(context.Background(), "live:alice", tc.args)
			require.Error(t, err)
			assert.Empty(t, runner.name, "subprocess must not run for rejected args")
		})
	}
}

func TestRunAcceptsMatcherArguments(t *testing.T) {
	runner := &recordingRunner{out: []byte("ok")}
	inv := amtool.NewWithRunner("http://am:9093", []string{"live:alice"}, runner, testLogger())

	_, err := inv.Run(context.Background(), "live:alice",
		[]string{"alert", "query", `alertname=HighCPU`, `severity=~"crit.*"`})
	assert.NoError(t, err)
}

func TestRunToolFailureIncludesOutput(t *testing.T) {
	runner := &recordingRunner{out: []byte("connection refused\n"), err: errors.New("exit status 1")}
	inv := amtool.NewWithRunner("http://am:9093", []string{"live:alice"}, runner, testLogger())

	_, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunRealSubprocess(t *testing.T) {
	// echo stands in for amtool; its output proves the argument order.
	inv := amtool.New("http://am:9093", []string{"live:alice"}, testLogger())
	inv.Tool = "echo"

	out, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	require.NoError(t, err)
	assert.Contains(t, out, "--alertmanager.url http://am:9093 alert query")
}

func TestRunMissingExecutable(t *testing.T) {
	inv := amtool.New("http://am:9093", []string{"live:alice"}, testLogger())
	inv.Tool = "definitely-not-a-real-binary"

	_, err := inv.Run(context.Background(), "live:alice", []string{"alert", "query"})
	assert.Error(t, err)
}
