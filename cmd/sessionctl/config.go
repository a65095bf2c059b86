package main

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// YamlConfig reads the log and db sections of the console config.
type YamlConfig struct {
	Log      LogConfig `yaml:"log"`
	DataBase DBConfig  `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

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
	if dbc.BackupCnt == 0 {
		return 3
	}
	return dbc.BackupCnt
}
