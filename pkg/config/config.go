package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	SQLite  SQLiteConfig
	Redis   RedisConfig
	Wiki    WikiConfig
	Engine  EngineConfig
	Topics  TopicsConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	RateLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type WikiConfig struct {
	BaseURL        string
	UserAgent      string
	Language       string
	MaxAttempts    int
	TimeoutSec     int
	FetchDelayMS   int
	SearchLimit    int
	ArticleLRUSize int
	SimLRUSize     int
	EntityLRUSize  int
}

type EngineConfig struct {
	MaxEntities int
	NEMemoSize  int
	FreqPath    string
	WhatWeight  float64
	WhoWeight   float64
	WhereWeight float64
}

type TopicsConfig struct {
	VocabPath   string
	WeightsPath string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/news-similarity")

	viper.SetEnvPrefix("NEWSSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 10485760)
	viper.SetDefault("server.rateLimit", 60)

	viper.SetDefault("sqlite.path", "./data/newssim.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 720)

	viper.SetDefault("wiki.baseURL", "https://en.wikipedia.org/w/api.php")
	viper.SetDefault("wiki.userAgent", "news-similarity-engine/1.0 (NE comparison)")
	viper.SetDefault("wiki.language", "en")
	viper.SetDefault("wiki.maxAttempts", 3)
	viper.SetDefault("wiki.timeoutSec", 15)
	viper.SetDefault("wiki.fetchDelayMS", 500)
	viper.SetDefault("wiki.searchLimit", 10)
	viper.SetDefault("wiki.articleLRUSize", 1000)
	viper.SetDefault("wiki.simLRUSize", 10000)
	viper.SetDefault("wiki.entityLRUSize", 1000)

	viper.SetDefault("engine.maxEntities", 10)
	viper.SetDefault("engine.neMemoSize", 1000)
	viper.SetDefault("engine.freqPath", "./data/word_freqs.tsv")
	viper.SetDefault("engine.whatWeight", 0.3657526)
	viper.SetDefault("engine.whoWeight", 0.3274783)
	viper.SetDefault("engine.whereWeight", 0.3067691)

	viper.SetDefault("topics.vocabPath", "./data/topics/vocab.txt")
	viper.SetDefault("topics.weightsPath", "./data/topics/weights.json")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
