package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/pkg/domain"
)

func TestParseSeed(t *testing.T) {
	seed, err := cli.ParseSeed([]string{
		"topic=gardening",
		"num_chapters=3",
		"dry_run=true",
		"note=a=b",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Context{
		"topic":        "gardening",
		"num_chapters": 3,
		"dry_run":      true,
		"note":         "a=b",
	}, seed)
}

func TestParseSeed_Invalid(t *testing.T) {
	_, err := cli.ParseSeed([]string{"missing-separator"})
	assert.Error(t, err)

	_, err = cli.ParseSeed([]string{"=value"})
	assert.Error(t, err)
}

func TestNewApp_BadLogLevel(t *testing.T) {
	_, err := cli.NewApp(cli.Options{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestNewApp_Defaults(t *testing.T) {
	app, err := cli.NewApp(cli.Options{})
	require.NoError(t, err)
	assert.NotNil(t, app.Store())
}
