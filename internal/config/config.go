// Package config loads runtime configuration from the environment (and an
// optional config file) through viper.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pricetags/internal/core/apperror"
)

// Mail transports.
const (
	TransportGmail = "gmail"
	TransportSMTP  = "smtp"
)

// Config holds every knob of a run.
type Config struct {
	LogLevel    string
	Development bool

	WorkDir    string
	ArchiveDir string

	ERP     ERPConfig
	Browser BrowserConfig
	Label   LabelConfig
	Mail    MailConfig

	// ReportDate is the price-change day (yesterday by default).
	ReportDate time.Time

	// DryRun generates everything but sends no email.
	DryRun bool
}

// ERPConfig addresses the web ERP.
type ERPConfig struct {
	LoginURL   string
	Username   string
	Password   string
	Department string
}

// BrowserConfig drives the headless browser.
type BrowserConfig struct {
	Headless        bool
	WindowWidth     int
	WindowHeight    int
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

// LabelConfig is the physical label size.
type LabelConfig struct {
	WidthCM  float64
	HeightCM float64
}

// MailConfig holds transport settings and the branch directory.
type MailConfig struct {
	Transport string
	Sender    string

	// ServiceAccountJSON is the Google service account key (gmail transport).
	ServiceAccountJSON string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// Directory maps branch id to recipient address.
	Directory map[int]string
}

// Branches returns directory branch ids in ascending order.
func (m MailConfig) Branches() []int {
	out := make([]int, 0, len(m.Directory))
	for b := range m.Directory {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("WORK_DIR", "arquivos")
	v.SetDefault("ARCHIVE_DIR", "")
	v.SetDefault("ERP_LOGIN_URL", "http://drogcidade.ddns.net:4647/sgfpod1/Login.pod")
	v.SetDefault("ERP_DEPARTMENT", "121")
	v.SetDefault("BROWSER_HEADLESS", true)
	v.SetDefault("BROWSER_WINDOW_SIZE", "1920,1080")
	v.SetDefault("BROWSER_TIMEOUT", 30*time.Second)
	v.SetDefault("DOWNLOAD_TIMEOUT", 60*time.Second)
	v.SetDefault("LABEL_WIDTH_CM", 9.0)
	v.SetDefault("LABEL_HEIGHT_CM", 3.0)
	v.SetDefault("MAIL_TRANSPORT", TransportGmail)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("DRY_RUN", false)

	// Names used by the previous deployment of this job.
	_ = v.BindEnv("ERP_USERNAME", "ERP_USERNAME", "username")
	_ = v.BindEnv("ERP_PASSWORD", "ERP_PASSWORD", "password")
	_ = v.BindEnv("MAIL_SENDER", "MAIL_SENDER", "sender")
	return v
}

// Load reads configuration. now anchors the default report date.
func Load(now time.Time) (*Config, error) {
	v := newViper()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperror.NewConfig("cannot read config file").WithCause(err).WithDetail("file", file)
		}
	}

	return fromViper(v, now)
}

func fromViper(v *viper.Viper, now time.Time) (*Config, error) {
	cfg := &Config{
		LogLevel:    v.GetString("LOG_LEVEL"),
		Development: v.GetString("APP_ENV") == "development",
		WorkDir:     v.GetString("WORK_DIR"),
		ArchiveDir:  v.GetString("ARCHIVE_DIR"),
		DryRun:      v.GetBool("DRY_RUN"),
		ERP: ERPConfig{
			LoginURL:   v.GetString("ERP_LOGIN_URL"),
			Username:   v.GetString("ERP_USERNAME"),
			Password:   v.GetString("ERP_PASSWORD"),
			Department: v.GetString("ERP_DEPARTMENT"),
		},
		Browser: BrowserConfig{
			Headless:        v.GetBool("BROWSER_HEADLESS"),
			Timeout:         v.GetDuration("BROWSER_TIMEOUT"),
			DownloadTimeout: v.GetDuration("DOWNLOAD_TIMEOUT"),
		},
		Label: LabelConfig{
			WidthCM:  v.GetFloat64("LABEL_WIDTH_CM"),
			HeightCM: v.GetFloat64("LABEL_HEIGHT_CM"),
		},
		Mail: MailConfig{
			Transport:          strings.ToLower(v.GetString("MAIL_TRANSPORT")),
			Sender:             v.GetString("MAIL_SENDER"),
			ServiceAccountJSON: v.GetString("GSA_CREDENTIALS"),
			SMTPHost:           v.GetString("SMTP_HOST"),
			SMTPPort:           v.GetInt("SMTP_PORT"),
			SMTPUser:           v.GetString("SMTP_USER"),
			SMTPPassword:       v.GetString("SMTP_PASSWORD"),
		},
	}

	w, h, err := parseWindowSize(v.GetString("BROWSER_WINDOW_SIZE"))
	if err != nil {
		return nil, err
	}
	cfg.Browser.WindowWidth, cfg.Browser.WindowHeight = w, h

	cfg.ReportDate = now.AddDate(0, 0, -1)
	if d := v.GetString("REPORT_DATE"); d != "" {
		parsed, err := time.ParseInLocation("02/01/2006", d, now.Location())
		if err != nil {
			return nil, apperror.NewConfig("REPORT_DATE must be dd/mm/yyyy").WithCause(err)
		}
		cfg.ReportDate = parsed
	}

	directory, err := DecodeDirectory(v.GetString("EMAIL_MAP_BASE64"))
	if err != nil {
		return nil, err
	}
	cfg.Mail.Directory = directory

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.ERP.Username == "" || c.ERP.Password == "" {
		return apperror.NewConfig("ERP_USERNAME and ERP_PASSWORD are required")
	}
	if c.ERP.LoginURL == "" {
		return apperror.NewConfig("ERP_LOGIN_URL is required")
	}
	if c.Label.WidthCM <= 0 || c.Label.HeightCM <= 0 {
		return apperror.NewConfig("label size must be positive").
			WithDetail("width_cm", c.Label.WidthCM).
			WithDetail("height_cm", c.Label.HeightCM)
	}
	if c.WorkDir == "" {
		return apperror.NewConfig("WORK_DIR is required")
	}

	if c.DryRun {
		return nil
	}

	switch c.Mail.Transport {
	case TransportGmail:
		if c.Mail.ServiceAccountJSON == "" || c.Mail.Sender == "" {
			return apperror.NewConfig("GSA_CREDENTIALS and MAIL_SENDER are required for gmail transport")
		}
	case TransportSMTP:
		if c.Mail.SMTPHost == "" || c.Mail.Sender == "" {
			return apperror.NewConfig("SMTP_HOST and MAIL_SENDER are required for smtp transport")
		}
	default:
		return apperror.NewConfig("unknown MAIL_TRANSPORT").WithDetail("transport", c.Mail.Transport)
	}
	return nil
}

// DecodeDirectory parses the base64-encoded JSON object mapping branch id
// ("1", "01") to an email address.
func DecodeDirectory(encoded string) (map[int]string, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, apperror.NewConfig("EMAIL_MAP_BASE64 is required")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, apperror.NewConfig("invalid EMAIL_MAP_BASE64 format").WithCause(err)
	}

	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apperror.NewConfig("invalid EMAIL_MAP_BASE64 format").WithCause(err)
	}

	out := make(map[int]string, len(m))
	for k, addr := range m {
		branch, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(k), "F"))
		if err != nil {
			return nil, apperror.NewConfig("branch id in EMAIL_MAP_BASE64 must be numeric").WithDetail("branch", k)
		}
		if strings.TrimSpace(addr) == "" {
			return nil, apperror.NewConfig("empty address in EMAIL_MAP_BASE64").WithDetail("branch", k)
		}
		out[branch] = strings.TrimSpace(addr)
	}
	return out, nil
}

func parseWindowSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, ",")
	w, errW := strconv.Atoi(strings.TrimSpace(ws))
	h, errH := strconv.Atoi(strings.TrimSpace(hs))
	if !ok || errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, apperror.NewConfig(fmt.Sprintf("invalid BROWSER_WINDOW_SIZE %q", s))
	}
	return w, h, nil
}
