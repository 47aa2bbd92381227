package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/deskbook/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DESKBOOK"

// Storage drivers accepted by DESKBOOK_STORAGE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Resource is a desk seeded at start-up.
type Resource struct {
	ID   string
	Name string
}

// Config captures environment driven configuration values for the deskbook service.
type Config struct {
	HTTPPort       int
	StorageDriver  string
	SQLitePath     string
	PostgresDSN    string
	JWTSecret      string
	Location       *time.Location
	DayStart       time.Duration
	DayEnd         time.Duration
	MaxOccurrences int
	Resources      []Resource
	LogLevel       slog.Level
}

// Load reads an optional .env file from the working directory and then parses
// configuration values from the process environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. Variables already present in
// the environment win over the file. A missing file is not an error.
//
// The loader applies defaults for optional fields while validating required
// values and reporting every missing or invalid entry at once.
func LoadFile(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetDefault("http_port", "8080")
	v.SetDefault("storage_driver", DriverSQLite)
	v.SetDefault("sqlite_path", "deskbook.db")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("day_start", "09:00")
	v.SetDefault("day_end", "17:00")
	v.SetDefault("max_occurrences", "52")
	v.SetDefault("log_level", "info")

	cfg := Config{}
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)
	envName := func(key string) string { return EnvPrefix + "_" + strings.ToUpper(key) }
	get := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	if port, err := strconv.Atoi(get("http_port")); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, envName("http_port"))
	} else {
		cfg.HTTPPort = port
	}

	switch driver := strings.ToLower(get("storage_driver")); driver {
	case DriverSQLite, DriverPostgres, DriverMemory:
		cfg.StorageDriver = driver
	default:
		invalid = append(invalid, envName("storage_driver"))
	}

	cfg.SQLitePath = get("sqlite_path")
	if cfg.StorageDriver == DriverSQLite && cfg.SQLitePath == "" {
		missing = append(missing, envName("sqlite_path"))
	}

	cfg.PostgresDSN = get("postgres_dsn")
	if cfg.StorageDriver == DriverPostgres && cfg.PostgresDSN == "" {
		missing = append(missing, envName("postgres_dsn"))
	}

	if secret := get("jwt_secret"); secret == "" {
		missing = append(missing, envName("jwt_secret"))
	} else {
		cfg.JWTSecret = secret
	}

	if loc, err := time.LoadLocation(get("timezone")); err != nil {
		invalid = append(invalid, envName("timezone"))
	} else {
		cfg.Location = loc
	}

	start, startErr := parseClock(get("day_start"))
	if startErr != nil {
		invalid = append(invalid, envName("day_start"))
	}
	end, endErr := parseClock(get("day_end"))
	if endErr != nil || (startErr == nil && end <= start) {
		invalid = append(invalid, envName("day_end"))
	}
	cfg.DayStart, cfg.DayEnd = start, end

	if n, err := strconv.Atoi(get("max_occurrences")); err != nil || n < 1 {
		invalid = append(invalid, envName("max_occurrences"))
	} else {
		cfg.MaxOccurrences = n
	}

	if resources, err := parseResources(get("resources")); err != nil {
		invalid = append(invalid, envName("resources"))
	} else {
		cfg.Resources = resources
	}

	if level, err := logging.ParseLevel(get("log_level")); err != nil {
		invalid = append(invalid, envName("log_level"))
	} else {
		cfg.LogLevel = level
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseClock parses HH:MM into an offset from midnight. 24:00 is allowed.
func parseClock(value string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(value, ":")
	if !ok {
		return 0, fmt.Errorf("config: %q is not HH:MM", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("config: %q is out of range", value)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// parseResources parses "id" or "id=Name" entries separated by commas.
func parseResources(value string) ([]Resource, error) {
	if value == "" {
		return nil, nil
	}
	var (
		out  []Resource
		seen = make(map[string]bool)
	)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, name, _ := strings.Cut(entry, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" || seen[id] {
			return nil, fmt.Errorf("config: invalid resource entry %q", entry)
		}
		seen[id] = true
		if name == "" {
			name = id
		}
		out = append(out, Resource{ID: id, Name: name})
	}
	return out, nil
}
