package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	gormSqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const syncCheckInterval = time.Second * 5
const syncMaxDuration = time.Minute
const syncChanBufferLen = 5

const filePrefix = "db_"
const fileSuffix = ".sqlite"

type Config interface {
	DBDirPath() string
	SyncInterval() time.Duration
	Backups() int
}

// DB is an in-memory sqlite database mirrored to timestamped snapshot files.
type DB struct {
	cfg      Config
	dbDriver *sqlite3.SQLiteDriver
	dbc      *sql.DB
	gormDB   *gorm.DB
	cncl     context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once

	t            *time.Ticker
	lastSyncTime time.Time
	dirty        atomic.Bool
	syncCh       chan struct{}
}

func New(cfg Config) (*DB, error) {
	d := &DB{
		cfg:          cfg,
		lastSyncTime: time.Now(),
		dbDriver:     &sqlite3.SQLiteDriver{},
		syncCh:       make(chan struct{}, syncChanBufferLen),
	}

	if err := os.MkdirAll(cfg.DBDirPath(), 0o755); err != nil {
		return nil, fmt.Errorf("db dir create failed: %w", err)
	}

	dbc, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("db failed creating memory connection: %w", err)
	}
	// every new connection to :memory: is a fresh empty database
	dbc.SetMaxOpenConns(1)
	dbc.SetMaxIdleConns(1)
	dbc.SetConnMaxLifetime(0)
	d.dbc = dbc

	gormLog := logger.New(
		log.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)
	d.gormDB, err = gorm.Open(gormSqlite.Dialector{Conn: d.dbc}, &gorm.Config{Logger: gormLog})
	if err != nil {
		_ = dbc.Close()
		return nil, fmt.Errorf("db failed gorm-ing connection: %w", err)
	}

	ctx, cncl := context.WithCancel(context.Background())
	d.cncl = cncl
	err = d.syncUp(ctx)
	if err != nil {
		cncl()
		_ = dbc.Close()
		return nil, fmt.Errorf("db init failed: %w", err)
	}

	d.t = time.NewTicker(syncCheckInterval)
	d.wg.Add(1)
	go (func() {
		defer d.wg.Done()
		d.syncer(ctx)
	})()
	return d, nil
}

// SyncNow marks the database changed and asks the syncer to write a snapshot.
// It never blocks: a pending request already covers the change.
func (d *DB) SyncNow() {
	d.dirty.Store(true)
	select {
	case d.syncCh <- struct{}{}:
	default:
	}
}

func (d *DB) SqlDB() *sql.DB {
	return d.dbc
}

func (d *DB) GORM() *gorm.DB {
	return d.gormDB
}

// Close stops the syncer, writes a last snapshot if anything changed and
// releases the memory database.
func (d *DB) Close() error {
	var err error
	d.once.Do(func() {
		d.cncl()
		d.wg.Wait()
		d.t.Stop()
		err = d.dbc.Close()
	})
	return err
}

func (d *DB) snapshots() ([]string, error) {
	files, err := os.ReadDir(d.cfg.DBDirPath())
	if err != nil {
		return nil, fmt.Errorf("reading dir failed: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if !strings.HasPrefix(f.Name(), filePrefix) || !strings.HasSuffix(f.Name(), fileSuffix) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *DB) syncUp(ctx context.Context) error {
	names, err := d.snapshots()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Infof("[DB] no stored database in dir %s", d.cfg.DBDirPath())
		return nil
	}
	// names carry a sortable timestamp, the last one is the newest
	name := names[len(names)-1]
	log.Infof("[DB] starting sync up from %s", name)

	dsn := fmt.Sprintf("file:%s/%s?mode=ro", d.cfg.DBDirPath(), name)
	sdbc, err := d.dbDriver.Open(dsn)
	if err != nil {
		return fmt.Errorf("failed connecting to db %s: %w", dsn, err)
	}
	defer func(c driver.Conn) {
		_ = c.Close()
	}(sdbc)

	sdb, ok := sdbc.(*sqlite3.SQLiteConn)
	if !ok {
		return fmt.Errorf("failed asserting source connection as sqlite")
	}

	tdbc, err := d.dbc.Conn(ctx)
	if err != nil {
		return fmt.Errorf("memory connection failed: %w", err)
	}
	defer func(c *sql.Conn) {
		_ = c.Close()
	}(tdbc)

	err = tdbc.Raw(func(targetConn any) error {
		tdb, ok := targetConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("failed asserting memory connection as sqlite")
		}
		return backup(tdb, sdb)
	})
	if err != nil {
		return fmt.Errorf("sync up failed: %w", err)
	}
	log.Infof("[DB] sync up done")
	return nil
}

func (d *DB) syncer(ctx context.Context) {
	log.Info("[DB] running syncer")
	for {
		select {
		case <-ctx.Done():
			if !d.dirty.Load() {
				log.Info("[DB] syncer stopped, nothing to sync")
				return
			}
			log.Info("[DB] sync down by closed context")
			d.syncDownLogged()
			return
		case <-d.syncCh:
			log.Debug("[DB] sync down by channel")
			d.syncDownLogged()
		case <-d.t.C:
			if !d.dirty.Load() || time.Since(d.lastSyncTime) < d.cfg.SyncInterval() {
				continue
			}
			log.Info("[DB] sync down by timer")
			d.syncDownLogged()
		}
	}
}

func (d *DB) syncDownLogged() {
	err := d.syncDown()
	if err != nil {
		log.Errorf("[DB] sync down failed: %s", err)
	}
}

func (d *DB) syncDown() error {
	d.dirty.Store(false)
	_, err := d.dbc.Exec("VACUUM")
	if err != nil {
		log.Errorf("[DB] memory vacuum failed: %s", err)
	}

	now := time.Now()
	dsn := fmt.Sprintf("file:%s/%s%s%s?mode=rwc", d.cfg.DBDirPath(), filePrefix, now.Format("2006_01_02_15_04_05.000000"), fileSuffix)
	dbtc, err := d.dbDriver.Open(dsn)
	if err != nil {
		d.dirty.Store(true)
		return fmt.Errorf("failed connecting to db %s: %w", dsn, err)
	}
	defer func(c driver.Conn) {
		_ = c.Close()
	}(dbtc)

	tdb, ok := dbtc.(*sqlite3.SQLiteConn)
	if !ok {
		return fmt.Errorf("failed asserting target connection as sqlite")
	}

	ctx, cncl := context.WithTimeout(context.Background(), syncMaxDuration)
	defer cncl()

	sdbc, err := d.dbc.Conn(ctx)
	if err != nil {
		d.dirty.Store(true)
		return fmt.Errorf("memory connection failed: %w", err)
	}
	defer func(c *sql.Conn) {
		_ = c.Close()
	}(sdbc)

	err = sdbc.Raw(func(sourceConn any) error {
		sdb, ok := sourceConn.(*sqlite3.SQLiteConn)
		if !ok {
			return fmt.Errorf("failed asserting memory connection as sqlite")
		}
		return backup(tdb, sdb)
	})
	if err != nil {
		d.dirty.Store(true)
		return fmt.Errorf("sync down to %s failed: %w", dsn, err)
	}

	d.lastSyncTime = now
	log.Debugf("[DB] sync down done to %s", dsn)
	d.clearExtraDbs()
	return nil
}

func backup(target, source *sqlite3.SQLiteConn) error {
	bck, err := target.Backup("main", source, "main")
	if err != nil {
		return fmt.Errorf("backup start failed: %w", err)
	}
	for {
		done, err := bck.Step(-1)
		if err != nil {
			_ = bck.Finish()
			return fmt.Errorf("backup step failed: %w", err)
		}
		if done {
			break
		}
	}
	err = bck.Finish()
	if err != nil {
		return fmt.Errorf("backup finish failed: %w", err)
	}
	return nil
}

func (d *DB) clearExtraDbs() {
	names, err := d.snapshots()
	if err != nil {
		log.Errorf("[DB] remove old dbs failed: %s", err)
		return
	}

	keep := d.cfg.Backups()
	if keep < 1 {
		keep = 1
	}
	if len(names) <= keep {
		return
	}
	for _, n := range names[:len(names)-keep] {
		fn := fmt.Sprintf("%s/%s", d.cfg.DBDirPath(), n)
		log.Infof("[DB] removing old db %s", fn)
		err = os.Remove(fn)
		if err != nil {
			log.Errorf("[DB] failed removing %s: %s", fn, err)
		}
	}
}
