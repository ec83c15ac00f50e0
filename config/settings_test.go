package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings(t *testing.T) {
	t.Run("missing file gives defaults", func(t *testing.T) {
		t.Setenv("HTTP_ADDR", "")
		t.Setenv("COMMISSION_FORMULA", "")
		t.Setenv("CURRENCY_MAJOR", "")
		s, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, ":8080", s.HTTPAddr)
		assert.Equal(t, DefaultCommissionFormula, s.CommissionFormula)
		assert.Equal(t, 24*time.Hour, s.TokenTTL)
		assert.Equal(t, "dollars", s.CurrencyMajor)
	})

	t.Run("file then env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "crm.yaml")
		body := "http_addr: \":9000\"\ndatabase_url: postgres://file\njwt_secret: from-file\ntoken_ttl: 2h\ncurrency_major: tenge\ncurrency_minor: tiyn\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		t.Setenv("JWT_SECRET", "from-env")
		t.Setenv("CURRENCY_MINOR", "тиын")

		s, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", s.HTTPAddr)
		assert.Equal(t, "postgres://file", s.DatabaseURL)
		assert.Equal(t, "from-env", s.JWTSecret)
		assert.Equal(t, 2*time.Hour, s.TokenTTL)
		assert.Equal(t, "tenge", s.CurrencyMajor)
		assert.Equal(t, "тиын", s.CurrencyMinor)
		assert.NoError(t, s.Validate())
	})

	t.Run("broken yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("http_addr: [\n"), 0o644))
		_, err := LoadSettings(path)
		assert.Error(t, err)
	})

	t.Run("validate", func(t *testing.T) {
		s := DefaultSettings()
		assert.Error(t, s.Validate())
		s.DatabaseURL = "postgres://x"
		assert.Error(t, s.Validate())
	})
}
