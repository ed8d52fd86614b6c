package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppConfig struct {
	App struct {
		Name string `mapstructure:"NAME"`
		Port string `mapstructure:"PORT"`
	}

	DATABASE struct {
		Postgres struct {
			DSN string `mapstructure:"URL"`
		}
		Redis struct {
			Addr     string `mapstructure:"ADDR"`
			Password string `mapstructure:"PASSWORD"`
		}
		Mongo struct {
			Url      string `mapstructure:"URL"`
			Database string `mapstructure:"DATABASE"`
		}
	}

	AUTH struct {
		PrivateKeyPath string `mapstructure:"PRIVATE_KEY_PATH"`
		PublicKeyPath  string `mapstructure:"PUBLIC_KEY_PATH"`
	}

	CHAT struct {
		DigestSalt      string `mapstructure:"DIGEST_SALT"`
		MaxMessageLen   int    `mapstructure:"MAX_MESSAGE_LEN"`
		DeleteChunkSize int    `mapstructure:"DELETE_CHUNK_SIZE"`
	}
}

var Conf *AppConfig

func LoadConfig() error {
	viper.SetConfigName("application")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("PARLEY")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("APP.NAME", "parley")
	viper.SetDefault("AUTH.PRIVATE_KEY_PATH", "private.pem")
	viper.SetDefault("AUTH.PUBLIC_KEY_PATH", "public.pem")
	viper.SetDefault("CHAT.MAX_MESSAGE_LEN", 2000)
	viper.SetDefault("CHAT.DELETE_CHUNK_SIZE", 500)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	Conf = &config
	log.Info().Msg("configuration loaded...")
	return nil
}
