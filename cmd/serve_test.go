package cmd

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateServeConfigMissingValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	err := validateServeConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datastore")
	assert.Contains(t, err.Error(), "pawapay-token")
	assert.Contains(t, err.Error(), "webhook-secret")
}

func TestValidateServeConfigEmptyWebhookSecret(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("datastore", "postgres://localhost/gateway")
	viper.Set("pawapay-token", "token")
	viper.Set("webhook-secret", "")

	err := validateServeConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook-secret")
	assert.NotContains(t, err.Error(), "datastore")
}

func TestValidateServeConfigComplete(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("datastore", "postgres://localhost/gateway")
	viper.Set("pawapay-token", "token")
	viper.Set("webhook-secret", "secret")

	assert.NoError(t, validateServeConfig())
}
