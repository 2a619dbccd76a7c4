package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsMapOntoLogOption(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)

	require.NoError(t, fs.Parse([]string{
		"--log.level=DEBUG",
		"--log.format=console",
		"--log.output-paths=stdout,/tmp/retrieval.log",
		"--log.disable-caller",
	}))
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())

	o.AddInitialField("service.name", "retrieval-x")
	opt := o.ToLogOption()
	assert.Equal(t, "DEBUG", opt.Level)
	assert.Equal(t, "console", opt.Format)
	assert.Equal(t, []string{"stdout", "/tmp/retrieval.log"}, opt.OutputPaths)
	assert.True(t, opt.DisableCaller)
	assert.Equal(t, "retrieval-x", opt.GetInitialFields()["service.name"])
}

func TestValidateRejectsUnknownLevel(t *testing.T) {
	o := NewOptions()
	o.Level = "LOUD"
	assert.Error(t, o.Validate())
}

func TestCompleteDefaultsOutput(t *testing.T) {
	o := NewOptions()
	o.OutputPaths = nil
	require.NoError(t, o.Complete())
	assert.Equal(t, []string{"stdout"}, o.OutputPaths)
}
