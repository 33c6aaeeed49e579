package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`

	AccessSecret string        `mapstructure:"access_secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`

	DBPath  string        `mapstructure:"db_path"`
	RoomTTL time.Duration `mapstructure:"room_ttl"`

	MaxVoiceUsers  int      `mapstructure:"max_voice_users"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	STUNServers    []string `mapstructure:"stun_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8000)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("access_secret", "dev-secret-change")
	v.SetDefault("access_ttl", "1h")
	v.SetDefault("db_path", "talkrooms.db")
	v.SetDefault("room_ttl", "120h")
	v.SetDefault("max_voice_users", 6)
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
