package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Farengier/gatewayd-console/internal/api"
	"github.com/Farengier/gatewayd-console/internal/db"
	"github.com/Farengier/gatewayd-console/internal/dispatch"
	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/signal"
	"github.com/Farengier/gatewayd-console/internal/storage"
	"github.com/Farengier/gatewayd-console/internal/telegram"
	"github.com/Farengier/gatewayd-console/internal/web"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var conf *string

func init() {
	conf = flag.String("config", "config.yml", "config file path")
}

func main() {
	flag.Parse()

	cfg, err := initConfig(*conf)
	if err != nil {
		fmt.Printf("Error reading config: %s\n", err)
		fmt.Println("Usage console --config=<file_path>")
		fmt.Println()
		os.Exit(1)
	}

	err = initLogging(cfg.Log)
	if err != nil {
		fmt.Printf("Error log init: %s\n", err)
		os.Exit(1)
	}

	signal.Init()

	store, err := initStorage(cfg)
	if err != nil {
		log.Fatalf("[Console] storage init failed: %s", err)
	}

	bus := dispatch.New()
	sess := session.New(cfg.Session, store, api.New(cfg.Gateway), bus)
	signal.OnShutdown(func() error {
		log.Info("[Console] Closing session manager")
		sess.Close()
		return nil
	})

	router := web.NewRouter(sess, bus, cfg.Server.LoginLimiter())
	signal.Run(func() { web.Start(cfg.Server, router) })

	if cfg.Telegram.Enabled() {
		if err := telegram.StartBot(cfg.Telegram, bus, sess); err != nil {
			log.Errorf("[Console] %s", err)
		}
	}

	// pick up the session left by a previous run
	bus.Dispatch(dispatch.Action{ActionType: dispatch.ActionRestore})
	log.Infof("[Console] session state: %s", sess.LogState())

	signal.Wait()
	log.Info("[Console] Closing")
}

func initStorage(c *YamlConfig) (storage.Storage, error) {
	if c.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		// registered before the session hook, so it runs after it
		signal.OnShutdown(func() error {
			log.Info("[Console] Closing redis client")
			return rdb.Close()
		})
		log.Infof("[Console] session storage: redis %s", c.Redis.Addr)
		return storage.NewRedis(rdb, c.Redis.Hash, c.Redis.RequestTimeout()), nil
	}

	cfg := c.DataBase
	if cfg.DBDirPath() == "" {
		log.Warn("[Console] db path is empty, session is kept in memory only")
		return storage.NewMemory(), nil
	}

	d, err := db.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("db open failed: %w", err)
	}
	// registered before the session hook, so it runs after it
	signal.OnShutdown(func() error {
		log.Info("[Console] Closing db")
		return d.Close()
	})

	return storage.NewSQL(d)
}

func initConfig(path string) (*YamlConfig, error) {
	if path == "" {
		return nil, fmt.Errorf("config param is empty")
	}

	fmt.Printf("config is %s\n", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	defer f.Close()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (*YamlConfig, error) {
	dec := yaml.NewDecoder(r)
	cfg := &YamlConfig{}
	err := dec.Decode(cfg)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func initLogging(cfg LogConfig) error {
	var w io.Writer
	w = os.Stdout
	if cfg.Path != "" {
		f, err := os.Create(cfg.Path)
		if err != nil {
			return fmt.Errorf("creating log file failed: %w", err)
		}
		w = io.MultiWriter(w, f)
	}

	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("level parse failed: %w", err)
	}

	log.SetOutput(w)
	log.SetLevel(lvl)
	return nil
}
