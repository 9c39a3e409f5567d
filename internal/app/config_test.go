package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StorePostgres, cfg.StoreDriver)
	require.Equal(t, "0.01", cfg.Epsilon().String())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unparsable epsilon": {"LEDGER_BALANCE_EPSILON": "abc"},
		"zero epsilon":       {"LEDGER_BALANCE_EPSILON": "0"},
		"negative epsilon":   {"LEDGER_BALANCE_EPSILON": "-0.5"},
		"unknown driver":     {"STORE_DRIVER": "mysql"},
		"unknown cache":      {"REPORT_CACHE": "memcached"},
		"memory in prod":     {"STORE_DRIVER": "memory", "APP_ENV": "production"},
		"rate limit":         {"RATE_LIMIT_PER_MINUTE": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestLoadConfigLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LEDGER_BALANCE_EPSILON", "0.001")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.Equal(t, "0.001", cfg.Epsilon().String())
}
