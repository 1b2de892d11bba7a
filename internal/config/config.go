package config

import (
	"flag"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server        ServerConfig  `env-prefix:"SERVER_"`
	Storage       StorageConfig `env-prefix:"STORAGE_"`
	DB            DBConfig      `env-prefix:"DB_"`
	CRM           CRMConfig     `env-prefix:"GHL_"`
	SiteURL       string        `env:"SITE_URL" env-default:"https://getapexautomation.com"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" env-default:"5m"`
}

type ServerConfig struct {
	Address     string        `env:"ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `env:"TIMEOUT" env-default:"4s"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" env-default:"50s"`
}

// StorageConfig selects the token store backend. The postgres backend takes
// its connection parameters from DBConfig.
type StorageConfig struct {
	Backend   string `env:"BACKEND" env-default:"postgres"`
	MongoURI  string `env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	RedisAddr string `env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type DBConfig struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
}

type CRMConfig struct {
	APIBase    string `env:"API_BASE" env-default:"https://services.leadconnectorhq.com"`
	APIKey     string `env:"API_KEY"`
	LocationID string `env:"LOCATION_ID"`
}

// MustLoad reads configuration once at startup and panics on failure.
// A config file may be given via -config or CONFIG_PATH; otherwise the
// environment alone is used.
func MustLoad() *Config {
	var cfg Config

	path := fetchConfigPath()
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			panic("failed to read config from environment: " + err.Error())
		}

		return &cfg
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		panic("config file not found: " + path)
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		panic("failed to read config: " + err.Error())
	}

	return &cfg
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
