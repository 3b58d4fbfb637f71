package skype

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCredential(t *testing.T) {
	secret, err := StaticCredential("hunter2").Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", secret)
}

func TestCommandCredential(t *testing.T) {
	t.Run("first line of stdout", func(t *testing.T) {
		creds := CommandCredential{Command: "printf first\\nsecond"}
		secret, err := creds.Secret(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "first", secret)
	})

	t.Run("trailing newline stripped", func(t *testing.T) {
		creds := CommandCredential{Command: "echo hunter2"}
		secret, err := creds.Secret(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hunter2", secret)
	})

	t.Run("missing command", func(t *testing.T) {
		creds := CommandCredential{Command: "definitely-not-a-real-binary"}
		_, err := creds.Secret(context.Background())
		assert.Error(t, err)
	})

	t.Run("empty command", func(t *testing.T) {
		creds := CommandCredential{}
		_, err := creds.Secret(context.Background())
		assert.Error(t, err)
	})
}
