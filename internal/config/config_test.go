package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricetags/internal/core/apperror"
)

var now = time.Date(2025, 12, 13, 6, 0, 0, 0, time.UTC)

func encodeMap(json string) string {
	return base64.StdEncoding.EncodeToString([]byte(json))
}

func setRequired(t *testing.T) {
	t.Setenv("ERP_USERNAME", "robo")
	t.Setenv("ERP_PASSWORD", "secret")
	t.Setenv("EMAIL_MAP_BASE64", encodeMap(`{"1":"f01@example.com","02":"f02@example.com"}`))
	t.Setenv("GSA_CREDENTIALS", `{"type":"service_account"}`)
	t.Setenv("MAIL_SENDER", "robo@example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(now)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "arquivos", cfg.WorkDir)
	assert.Equal(t, "121", cfg.ERP.Department)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 1920, cfg.Browser.WindowWidth)
	assert.Equal(t, 1080, cfg.Browser.WindowHeight)
	assert.Equal(t, 30*time.Second, cfg.Browser.Timeout)
	assert.Equal(t, 9.0, cfg.Label.WidthCM)
	assert.Equal(t, 3.0, cfg.Label.HeightCM)
	assert.Equal(t, TransportGmail, cfg.Mail.Transport)
	assert.Equal(t, "2025-12-12", cfg.ReportDate.Format("2006-01-02"))
	assert.Equal(t, map[int]string{1: "f01@example.com", 2: "f02@example.com"}, cfg.Mail.Directory)
	assert.Equal(t, []int{1, 2}, cfg.Mail.Branches())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LABEL_WIDTH_CM", "10.5")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("BROWSER_WINDOW_SIZE", "1280, 720")
	t.Setenv("REPORT_DATE", "01/02/2025")
	t.Setenv("MAIL_TRANSPORT", "SMTP")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load(now)
	require.NoError(t, err)

	assert.Equal(t, 10.5, cfg.Label.WidthCM)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 1280, cfg.Browser.WindowWidth)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), cfg.ReportDate)
	assert.Equal(t, TransportSMTP, cfg.Mail.Transport)
	assert.Equal(t, 587, cfg.Mail.SMTPPort)
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("username", "legacy")
	t.Setenv("password", "pw")
	t.Setenv("sender", "robo@example.com")
	t.Setenv("EMAIL_MAP_BASE64", encodeMap(`{"3":"f03@example.com"}`))
	t.Setenv("GSA_CREDENTIALS", "{}")

	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.ERP.Username)
	assert.Equal(t, "robo@example.com", cfg.Mail.Sender)
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "pricetags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("WORK_DIR: /tmp/etiquetas\nLABEL_HEIGHT_CM: 2.5\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(now)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/etiquetas", cfg.WorkDir)
	assert.Equal(t, 2.5, cfg.Label.HeightCM)
}

func TestLoad_MissingSettingsAreFatal(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"credentials": func(t *testing.T) { t.Setenv("ERP_PASSWORD", "") },
		"email map":   func(t *testing.T) { t.Setenv("EMAIL_MAP_BASE64", "") },
		"bad base64":  func(t *testing.T) { t.Setenv("EMAIL_MAP_BASE64", "%%%") },
		"bad json":    func(t *testing.T) { t.Setenv("EMAIL_MAP_BASE64", encodeMap("[1,2]")) },
		"bad branch":  func(t *testing.T) { t.Setenv("EMAIL_MAP_BASE64", encodeMap(`{"centro":"a@b.c"}`)) },
		"gmail creds": func(t *testing.T) { t.Setenv("GSA_CREDENTIALS", "") },
		"transport":   func(t *testing.T) { t.Setenv("MAIL_TRANSPORT", "pigeon") },
		"label size":  func(t *testing.T) { t.Setenv("LABEL_WIDTH_CM", "0") },
		"window":      func(t *testing.T) { t.Setenv("BROWSER_WINDOW_SIZE", "big") },
		"date":        func(t *testing.T) { t.Setenv("REPORT_DATE", "2025-01-01") },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			mutate(t)

			_, err := Load(now)
			require.Error(t, err)
			assert.True(t, apperror.IsConfig(err), err.Error())
			assert.True(t, apperror.IsFatal(err))
		})
	}
}

func TestLoad_DryRunSkipsTransportCheck(t *testing.T) {
	setRequired(t)
	t.Setenv("GSA_CREDENTIALS", "")
	t.Setenv("DRY_RUN", "true")

	cfg, err := Load(now)
	require.NoError(t, err)
	assert.True(t, cfg.DryRun)
}

func TestDecodeDirectory(t *testing.T) {
	m, err := DecodeDirectory(encodeMap(`{"F04":"f04@example.com"," 5 ":" f05@example.com "}`))
	require.NoError(t, err)
	assert.Equal(t, map[int]string{4: "f04@example.com", 5: "f05@example.com"}, m)
}
