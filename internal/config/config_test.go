package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:     "expand single env var",
			input:    "api_key: ${TEST_API_KEY}",
			envVars:  map[string]string{"TEST_API_KEY": "test_key_123"},
			expected: "api_key: test_key_123",
		},
		{
			name:     "expand multiple env vars",
			input:    "api_key: ${API_KEY}\napi_secret: ${API_SECRET}",
			envVars:  map[string]string{"API_KEY": "key_value", "API_SECRET": "secret_value"},
			expected: "api_key: key_value\napi_secret: secret_value",
		},
		{
			name:     "missing env var returns empty string",
			input:    "api_key: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "api_key: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}
			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLoadConfigWithEnvVars(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "config-test-*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	configContent := `app:
  mode: "live"
  instance_id: "test-instance"

exchange:
  name: "binance"
  trade_mode: "futures"
  api_key: "${TEST_BINANCE_API_KEY}"
  api_secret: "${TEST_BINANCE_API_SECRET}"

symbols:
  - name: "BTCUSDT"
    tick_size: 0.01
    lot_size: 0.001
    min_notional: 5
    price_decimals: 2
    quantity_decimals: 3
    max_position: 0.05

governors:
  portfolio_notional_cap: 5000

event_log:
  path: "data/events.bin"
  max_size_bytes: 1073741824

snapshot:
  path: "data/snapshot.bin"

system:
  log_level: "INFO"
  truth_loop_interval: "3s"
`
	_, err = tmpFile.Write([]byte(configContent))
	require.NoError(t, err)
	tmpFile.Close()

	os.Setenv("TEST_BINANCE_API_KEY", "test_api_key_from_env")
	os.Setenv("TEST_BINANCE_API_SECRET", "test_secret_from_env")
	defer os.Unsetenv("TEST_BINANCE_API_KEY")
	defer os.Unsetenv("TEST_BINANCE_API_SECRET")

	cfg, err := LoadConfig(tmpFile.Name())
	require.NoError(t, err, "LoadConfig() error")

	assert.Equal(t, Secret("test_api_key_from_env"), cfg.Exchange.APIKey)
	assert.Equal(t, Secret("test_secret_from_env"), cfg.Exchange.APISecret)
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exchange.APIKey = Secret("my_super_secret_api_key")
	cfg.Exchange.APISecret = Secret("my_super_secret_secret_key")

	output := cfg.String()

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "my_super_secret_api_key")
	assert.NotContains(t, output, "my_super_secret_secret_key")
}

func TestValidate_RejectsMissingSymbols(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbols")
}

func TestValidate_RequiresCredentialsInLiveMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.Mode = "live"
	cfg.Exchange.APIKey = ""
	cfg.Exchange.APISecret = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}
