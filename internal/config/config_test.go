package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/secret"
)

func writeConfig(t *testing.T, f File) string {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Save(path, f))
	return path
}

func baseFile() File {
	return File{
		Name:      "Wei",
		Username:  "2020300001",
		Password:  "pw",
		Library:   "1",
		Room:      "12",
		StartTime: "09:00",
		EndTime:   "11:00",
		Window:    "yes",
		Power:     "any",
	}
}

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"WHULIB_NAME", "WHULIB_USERNAME", "WHULIB_PASSWORD", "WHULIB_LIBRARY",
		"WHULIB_ROOM", "WHULIB_START", "WHULIB_END", "WHULIB_WINDOW", "WHULIB_POWER",
		"WHULIB_POLL_SECONDS", "WHULIB_GATE_MARGIN_MINUTES", "WHULIB_SESSION_CACHE",
		"WHULIB_PASSPHRASE", "DATABASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseFile())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2020300001", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
	assert.Equal(t, "09:00", cfg.Filter.StartTime)
	assert.Equal(t, reservation.PrefYes, cfg.Filter.Window)
	assert.Equal(t, reservation.PrefAny, cfg.Filter.Power)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.GateMargin)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseFile())
	t.Setenv("WHULIB_ROOM", "7")
	t.Setenv("WHULIB_POLL_SECONDS", "5")
	t.Setenv("DATABASE_URL", "postgres://localhost/whulib")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7", cfg.Filter.Room)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "postgres://localhost/whulib", cfg.DatabaseURL)
}

func TestLoadEncryptedPassword(t *testing.T) {
	clearEnv(t)
	blob, err := secret.Encrypt("hunter2", "real-pw")
	require.NoError(t, err)

	f := baseFile()
	f.Password = "enc:" + blob
	path := writeConfig(t, f)

	_, err = Load(path)
	require.Error(t, err, "encrypted password without passphrase must fail")

	t.Setenv("WHULIB_PASSPHRASE", "hunter2")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "real-pw", cfg.Password)
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)

	f := baseFile()
	f.Window = "maybe"
	_, err := Load(writeConfig(t, f))
	assert.Error(t, err)

	f = baseFile()
	f.Username = ""
	_, err = Load(writeConfig(t, f))
	assert.Error(t, err)

	f = baseFile()
	f.EndTime = ""
	_, err = Load(writeConfig(t, f))
	assert.Error(t, err)

	path := writeConfig(t, baseFile())
	t.Setenv("WHULIB_POLL_SECONDS", "0")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionCacheRequiresKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, baseFile())
	t.Setenv("WHULIB_SESSION_CACHE", filepath.Join(t.TempDir(), "session"))
	t.Setenv("SESSION_HASH_KEY", "")
	t.Setenv("SESSION_BLOCK_KEY", "")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_HASH_KEY")
}
