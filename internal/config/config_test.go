package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/apotek",
		"REDIS_URL":    "redis://localhost:6379/0",
		"APP_ENV":      "",
		"PORT":         "",
	})
	require.NoError(t, err)

	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "2.5", cfg.FreeDeliveryRadiusKM.String())
	require.Equal(t, "5", cfg.DeliveryPerKMCharge.String())
	require.Equal(t, "20", cfg.DeliveryMinSurcharge.String())
	require.Equal(t, "30", cfg.ExpressDeliveryCharge.String())
	require.Equal(t, 30, cfg.OrderRateLimitMax)
	require.Equal(t, "apotek", cfg.QueueRedisPrefix)
	require.Equal(t, 4, cfg.WorkerConcurrency)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":            "postgres://localhost:5432/apotek",
		"REDIS_URL":               "redis://localhost:6379/0",
		"PORT":                    "9090",
		"FREE_DELIVERY_RADIUS_KM": "3.0",
		"EXPRESS_DELIVERY_CHARGE": "45.50",
		"ORDER_RATE_LIMIT_MAX":    "5",
		"CORS_ALLOWED_ORIGINS":    "https://a.example, https://b.example",
	})
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, "3", cfg.FreeDeliveryRadiusKM.String())
	require.Equal(t, "45.5", cfg.ExpressDeliveryCharge.String())
	require.Equal(t, 5, cfg.OrderRateLimitMax)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresConnections(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"DATABASE_URL": "postgres://localhost:5432/apotek",
		"REDIS_URL":    "",
	})
	require.Error(t, err)

	_, err = LoadForTests(map[string]string{
		"DATABASE_URL":            "postgres://localhost:5432/apotek",
		"REDIS_URL":               "redis://localhost:6379/0",
		"FREE_DELIVERY_RADIUS_KM": "-1",
	})
	require.Error(t, err)
}
