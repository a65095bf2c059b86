package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Farengier/gatewayd-console/internal/db"
	"github.com/Farengier/gatewayd-console/internal/session"
	"github.com/Farengier/gatewayd-console/internal/storage"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var conf *string
var clearFlag *bool

var errNoSession = errors.New("no stored session")

func init() {
	conf = flag.String("config", "config.yml", "config file path")
	clearFlag = flag.Bool("clear", false, "remove the stored session")
}

func main() {
	flag.Parse()

	cfg, err := initConfig()
	if err != nil {
		fmt.Printf("Error reading config: %s\n", err)
		fmt.Println("Usage sessionctl --config=<file_path> [--clear]")
		os.Exit(1)
	}

	err = initLogging(cfg.Log)
	if err != nil {
		fmt.Printf("Error log init: %s\n", err)
		os.Exit(1)
	}

	if cfg.DataBase.Path == "" {
		fmt.Println("db path is empty, nothing is stored")
		os.Exit(1)
	}

	if err := run(os.Stdout, cfg.DataBase, *clearFlag); err != nil {
		log.Errorf("[Sessionctl] %s", err)
		os.Exit(1)
	}
}

func run(w io.Writer, cfg DBConfig, clearAll bool) error {
	dbc, err := db.New(cfg)
	if err != nil {
		return fmt.Errorf("db open failed: %w", err)
	}
	defer func() {
		if err := dbc.Close(); err != nil {
			log.Errorf("[Sessionctl] db close failed: %s", err)
		}
	}()

	store, err := storage.NewSQL(dbc)
	if err != nil {
		return err
	}

	if clearAll {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Fprintln(w, "stored session removed")
		return nil
	}

	err = describe(w, store)
	if errors.Is(err, errNoSession) {
		fmt.Fprintln(w, err)
		return nil
	}
	return err
}

// describe prints the stored snapshot without its session key.
func describe(w io.Writer, store storage.Storage) error {
	raw, ok, err := store.GetItem(session.StorageKey)
	if err != nil {
		return fmt.Errorf("reading session failed: %w", err)
	}
	if !ok || raw == "" {
		return errNoSession
	}

	st := session.State{}
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return fmt.Errorf("stored session is not valid json: %w", err)
	}

	fmt.Fprintf(w, "session key: %s\n", mask(st.SessionKey))
	fmt.Fprintf(w, "last login:  %d\n", st.LastLogin)
	if st.User != nil {
		fmt.Fprintf(w, "user:        %s [%s] loggedIn=%t\n", st.User.Name, st.User.Role, st.User.IsLoggedIn)
	}
	return nil
}

func mask(s string) string {
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}

func initConfig() (*YamlConfig, error) {
	if conf == nil || *conf == "" {
		return nil, fmt.Errorf("config param is empty")
	}

	f, err := os.Open(*conf)
	if err != nil {
		return nil, fmt.Errorf("open failed: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	dec := yaml.NewDecoder(f)
	cfg := &YamlConfig{}
	err = dec.Decode(cfg)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding failed: %w", err)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warning"
	}
	return cfg, nil
}

func initLogging(cfg LogConfig) error {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("level parse failed: %w", err)
	}

	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	return nil
}
