package config

import (
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
)

type HTTPConfig struct {
	Port                int `env:"PORT" envDefault:"8546"`
	HTTPConcurrency     int `env:"HTTP_CONCURRENCY" envDefault:"50000"`
	MaxConnectionsPerIP int `env:"HTTP_MAXCONNECTIONS" envDefault:"50000"`
	MaxBodySize         int `env:"HTTP_MAXBODYSIZE" envDefault:"100000"`
}

type StorageConfig struct {
	DataDir string `env:"DATA_DIR" envDefault:"./plasmadata"`
}

type RedisConfig struct {
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"127.0.0.1"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
}

type SignatureConfig struct {
	// Operator key used to sign block headers. The default is a well-known
	// development key; a deployment must override it.
	BlockSigningKey string `env:"BLOCK_ETH_KEY" envDefault:"0xc87509a1c067bbde78beb793e6fa76530b6382a4c0241e5e4a9ec0a0f44dc0d3"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Config is the full server configuration, parsed section by section from
// the environment.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Signature SignatureConfig
	Log       LogConfig
}

// ParseConfigs reads every section from the environment.
func ParseConfigs() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(&cfg.HTTP); err != nil {
		return nil, errors.Wrap(err, "could not parse http config")
	}
	if err := env.Parse(&cfg.Storage); err != nil {
		return nil, errors.Wrap(err, "could not parse storage config")
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.Wrap(err, "could not parse redis config")
	}
	if err := env.Parse(&cfg.Signature); err != nil {
		return nil, errors.Wrap(err, "could not parse signature config")
	}
	if err := env.Parse(&cfg.Log); err != nil {
		return nil, errors.Wrap(err, "could not parse log config")
	}
	return cfg, nil
}
