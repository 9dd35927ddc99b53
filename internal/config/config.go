// Package config 提供應用配置的載入與缺省值
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
	} `yaml:"server"`

	// Snapshot 快照持久化後端：memory | file | redis | postgres
	Snapshot struct {
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"` // file 後端的目錄

		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`

		Postgres struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
		} `yaml:"postgres"`
	} `yaml:"snapshot"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default 缺省配置：單機、記憶體快照、文本日誌
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.IdleTimeout = 60 * time.Second
	cfg.Snapshot.Backend = "memory"
	cfg.Snapshot.Dir = "snapshots"
	cfg.Snapshot.Redis.Addr = "localhost:6379"
	cfg.Snapshot.Postgres.Host = "localhost"
	cfg.Snapshot.Postgres.Port = 5432
	cfg.Snapshot.Postgres.User = "drawboard"
	cfg.Snapshot.Postgres.DBName = "drawboard"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load 從 YAML 檔案載入配置，檔案不存在時返回缺省配置
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置檔失敗: %w", err)
	}
	return cfg, nil
}

// PostgresDSN 生成 PostgreSQL 連線字串
//
// 支援環境變數覆蓋（生產環境常用）。
func (c *Config) PostgresDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Snapshot.Postgres.User,
		c.Snapshot.Postgres.Password,
		c.Snapshot.Postgres.Host,
		c.Snapshot.Postgres.Port,
		c.Snapshot.Postgres.DBName,
	)
}
