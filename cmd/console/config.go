package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type YamlConfig struct {
	Log      LogConfig     `yaml:"log"`
	Session  SessionConfig `yaml:"session"`
	Gateway  GatewayConfig `yaml:"gateway"`
	Server   ServerConfig  `yaml:"server"`
	Telegram TBotConfig    `yaml:"telegram"`
	DataBase DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type SessionConfig struct {
	SessionTTL string `yaml:"ttl"`
	Domain     string `yaml:"email_domain"`
}

func (sc SessionConfig) TTL() time.Duration {
	if sc.SessionTTL == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(sc.SessionTTL)
	if err != nil || d <= 0 {
		log.Errorf("[Config] wrong session ttl %q: %v", sc.SessionTTL, err)
		d = time.Hour
	}
	return d
}
func (sc SessionConfig) EmailDomain() string {
	return sc.Domain
}

type GatewayConfig struct {
	URL     string `yaml:"login_url"`
	Timeout string `yaml:"timeout"`
}

func (gc GatewayConfig) LoginURL() string {
	return gc.URL
}
func (gc GatewayConfig) RequestTimeout() time.Duration {
	if gc.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(gc.Timeout)
	if err != nil {
		log.Errorf("[Config] wrong gateway timeout format: %s", err)
		d = 0
	}
	return d
}

type TBotConfig struct {
	BotToken string  `yaml:"token"`
	ChatIDs  []int64 `yaml:"chats"`
	TimeOut  struct {
		Sensitive string `yaml:"sensitive"`
		Low       string `yaml:"low"`
	} `yaml:"spam_timeout"`
}

func (tbc TBotConfig) Enabled() bool {
	return tbc.BotToken != ""
}
func (tbc TBotConfig) Token() string {
	return tbc.BotToken
}
func (tbc TBotConfig) Chats() []int64 {
	return tbc.ChatIDs
}
func (tbc TBotConfig) SpamFilterDurationSensitive() time.Duration {
	d, err := time.ParseDuration(tbc.TimeOut.Sensitive)
	if err != nil {
		log.Errorf("[Config] wrong tg spam filter sensitive interval format: %s", err)
		d = time.Second * 60
	}
	return d
}
func (tbc TBotConfig) SpamFilterDurationLow() time.Duration {
	d, err := time.ParseDuration(tbc.TimeOut.Low)
	if err != nil {
		log.Errorf("[Config] wrong tg spam filter low interval format: %s", err)
		d = time.Second * 1
	}
	return d
}

type ServerConfig struct {
	Listen     string  `yaml:"listen"`
	Port       int     `yaml:"port"`
	ReadTO     int     `yaml:"read_timeout"`
	WriteTO    int     `yaml:"write_timeout"`
	LoginRate  float64 `yaml:"login_rate"`
	LoginBurst int     `yaml:"login_burst"`
}

// LoginLimiter returns nil when login_rate is not set.
func (sc ServerConfig) LoginLimiter() *rate.Limiter {
	if sc.LoginRate <= 0 {
		return nil
	}
	burst := sc.LoginBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(sc.LoginRate), burst)
}

func (sc ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", sc.Listen, sc.Port)
}
func (sc ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(sc.ReadTO) * time.Second
}
func (sc ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(sc.WriteTO) * time.Second
}

// DBConfig keeps the local storage on disk when Path is set, in memory otherwise.
type DBConfig struct {
	Path      string `yaml:"path"`
	BackupCnt int    `yaml:"backups"`
	Sync      string `yaml:"sync"`
}

func (dbc DBConfig) DBDirPath() string {
	return dbc.Path
}
func (dbc DBConfig) SyncInterval() time.Duration {
	d, err := time.ParseDuration(dbc.Sync)
	if err != nil {
		log.Errorf("[Config] wrong db sync interval format: %s", err)
		d = time.Hour * 24
	}
	return d
}
func (dbc DBConfig) Backups() int {
	return dbc.BackupCnt
}

// RedisConfig selects the redis storage when Addr is set. It wins over db.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Hash     string `yaml:"hash"`
	Timeout  string `yaml:"timeout"`
}

func (rc RedisConfig) Enabled() bool {
	return rc.Addr != ""
}
func (rc RedisConfig) RequestTimeout() time.Duration {
	if rc.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(rc.Timeout)
	if err != nil {
		log.Errorf("[Config] wrong redis timeout format: %s", err)
		d = 0
	}
	return d
}

func (c *YamlConfig) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DataBase.BackupCnt == 0 {
		c.DataBase.BackupCnt = 3
	}
	if c.DataBase.Sync == "" {
		c.DataBase.Sync = "1h"
	}
}
