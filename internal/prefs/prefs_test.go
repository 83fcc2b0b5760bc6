package prefs_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simpleweather/weathersync/internal/prefs"
	"github.com/simpleweather/weathersync/internal/weather"
)

func newTestPrefs(t *testing.T) (*prefs.Prefs, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return prefs.NewPrefs(client), mr
}

func TestSettings_Defaults(t *testing.T) {
	p, _ := newTestPrefs(t)

	s, err := p.Settings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, weather.UnitCelsius, s.TemperatureUnit)
	assert.Equal(t, weather.UnitKph, s.WindSpeedUnit)
	assert.True(t, s.AutoUpdateEnabled)
	assert.Equal(t, 3, s.UpdateIntervalHours)
	assert.True(t, s.NotificationsEnabled)
	assert.Equal(t, 0.0, s.LastLatitude)
	assert.Equal(t, 0.0, s.LastLongitude)
}

func TestSetTemperatureUnit(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetTemperatureUnit(ctx, weather.UnitFahrenheit))

	s, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, weather.UnitFahrenheit, s.TemperatureUnit)
}

func TestSetTemperatureUnit_Invalid(t *testing.T) {
	p, _ := newTestPrefs(t)

	err := p.SetTemperatureUnit(context.Background(), "kelvin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized temperature unit")
}

func TestSetWindSpeedUnit(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetWindSpeedUnit(ctx, weather.UnitMph))

	s, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, weather.UnitMph, s.WindSpeedUnit)
}

func TestSetWindSpeedUnit_Invalid(t *testing.T) {
	p, _ := newTestPrefs(t)

	err := p.SetWindSpeedUnit(context.Background(), "knots")
	require.Error(t, err)
}

func TestSetAutoUpdate(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetAutoUpdate(ctx, false))

	enabled, err := p.AutoUpdateEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSetUpdateInterval(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetUpdateInterval(ctx, 6))

	d, err := p.UpdateInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, d)
}

func TestSetUpdateInterval_Invalid(t *testing.T) {
	p, _ := newTestPrefs(t)

	for _, hours := range []int{0, -1} {
		err := p.SetUpdateInterval(context.Background(), hours)
		require.Error(t, err, "hours=%d", hours)
	}
}

func TestSetNotifications(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetNotifications(ctx, false))

	enabled, err := p.NotificationsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestSetLastLocation(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetLastLocation(ctx, 48.87, 2.33))

	s, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 48.87, s.LastLatitude)
	assert.Equal(t, 2.33, s.LastLongitude)
}

func TestSettings_IgnoresCorruptStoredValues(t *testing.T) {
	p, mr := newTestPrefs(t)

	mr.HSet("weathersync:settings", "update_interval", "not-a-number")
	mr.HSet("weathersync:settings", "last_location_lat", "garbage")

	s, err := p.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, s.UpdateIntervalHours, "corrupt interval falls back to default")
	assert.Equal(t, 0.0, s.LastLatitude)
}

func TestClear_RestoresDefaults(t *testing.T) {
	p, _ := newTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, p.SetTemperatureUnit(ctx, weather.UnitFahrenheit))
	require.NoError(t, p.SetUpdateInterval(ctx, 12))
	require.NoError(t, p.Clear(ctx))

	s, err := p.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, weather.UnitCelsius, s.TemperatureUnit)
	assert.Equal(t, 3, s.UpdateIntervalHours)
}

func TestSettings_RedisUnavailable(t *testing.T) {
	p, mr := newTestPrefs(t)
	mr.Close()

	_, err := p.Settings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading settings")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := prefs.Connect(context.Background(), "not-a-redis-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing redis URL")
}

func TestConnect_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := prefs.Connect(ctx, "redis://"+addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}
