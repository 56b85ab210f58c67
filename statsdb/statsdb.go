package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Run 一局（Reset 到下一次 Reset 或房间关闭）的生成摘要
type Run struct {
	Room        string    `json:"room"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"startedAt"`
	EndedAt     time.Time `json:"endedAt"`
	Ticks       uint64    `json:"ticks"`
	Spawned     uint64    `json:"spawned"`
	Recycled    uint64    `json:"recycled"`
	Forced      uint64    `json:"forced"`
	Strict      uint64    `json:"strict"`
	Emergency   uint64    `json:"emergency"`
	Fallback    uint64    `json:"fallback"`
	Entities    uint64    `json:"entities"`
	Consumed    uint64    `json:"consumed"`
	Checkpoints uint64    `json:"checkpoints"`
	MaxHeightM  int       `json:"maxHeightM"`
	Reason      string    `json:"reason"`
}

// DB 运行摘要索引。写入走后台协程，落后时直接丢弃，不拖慢房间 Tick
type DB struct {
	db     *sql.DB
	driver string
	log    *zap.SugaredLogger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

type req struct {
	run  Run
	done chan struct{}
}

// QueueStats 写入队列状态
type QueueStats struct {
	Written       int64 `json:"written"`
	Dropped       int64 `json:"dropped"`
	Failed        int64 `json:"failed"`
	QueueDepth    int   `json:"queueDepth"`
	QueueCapacity int   `json:"queueCapacity"`
}

// ParseSpec 解析 -stats 参数："sqlite:<path>"、"postgres:<dsn>"、postgres:// URL，或直接给 sqlite 文件路径
func ParseSpec(spec string) (driver, dsn string, err error) {
	switch {
	case spec == "":
		return "", "", errors.New("statsdb: empty spec")
	case strings.HasPrefix(spec, "postgres://"), strings.HasPrefix(spec, "postgresql://"):
		return DriverPostgres, spec, nil
	}
	if d, rest, ok := strings.Cut(spec, ":"); ok {
		switch d {
		case DriverSQLite:
			return DriverSQLite, rest, nil
		case DriverPostgres, "pg":
			return DriverPostgres, rest, nil
		}
	}
	return DriverSQLite, spec, nil
}

// Open 按 spec 打开数据库并建表
func Open(spec string, log *zap.SugaredLogger) (*DB, error) {
	driver, dsn, err := ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	return OpenDriver(driver, dsn, log)
}

func OpenDriver(driver, dsn string, log *zap.SugaredLogger) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("statsdb: empty %s dsn", driver)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		if db, err = sql.Open(DriverSQLite, dsn); err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		if err := initPragmas(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("statsdb: pragmas: %w", err)
		}
	case DriverPostgres:
		if db, err = sql.Open(DriverPostgres, dsn); err != nil {
			return nil, fmt.Errorf("statsdb: open postgres: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("statsdb: ping postgres: %w", err)
		}
	default:
		return nil, fmt.Errorf("statsdb: unsupported driver %q", driver)
	}

	if err := initSchema(db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statsdb: schema: %w", err)
	}

	s := &DB{
		db:     db,
		driver: driver,
		log:    log,
		ch:     make(chan req, 1024),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB, driver string) error {
	id, big := "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"
	if driver == DriverPostgres {
		id, big = "BIGSERIAL PRIMARY KEY", "BIGINT"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id ` + id + `,
			room TEXT NOT NULL,
			seed ` + big + ` NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			ticks ` + big + ` NOT NULL,
			spawned ` + big + ` NOT NULL,
			recycled ` + big + ` NOT NULL,
			forced ` + big + ` NOT NULL,
			strict_count ` + big + ` NOT NULL,
			emergency ` + big + ` NOT NULL,
			fallback ` + big + ` NOT NULL,
			entities ` + big + ` NOT NULL,
			consumed ` + big + ` NOT NULL,
			checkpoints ` + big + ` NOT NULL,
			max_height_m ` + big + ` NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS runs_room_id ON runs(room, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// rebind 把 ? 占位符改写为驱动要求的形式
func rebind(driver, q string) string {
	if driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

const insertRun = `INSERT INTO runs(room,seed,started_at,ended_at,ticks,spawned,recycled,forced,strict_count,emergency,fallback,entities,consumed,checkpoints,max_height_m,reason) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

func (s *DB) loop() {
	q := rebind(s.driver, insertRun)
	for r := range s.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		run := r.run
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := s.db.ExecContext(ctx, q,
			run.Room, run.Seed,
			run.StartedAt.UTC().Format(time.RFC3339Nano), run.EndedAt.UTC().Format(time.RFC3339Nano),
			int64(run.Ticks), int64(run.Spawned), int64(run.Recycled), int64(run.Forced),
			int64(run.Strict), int64(run.Emergency), int64(run.Fallback),
			int64(run.Entities), int64(run.Consumed), int64(run.Checkpoints),
			run.MaxHeightM, run.Reason)
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.log.Warnf("statsdb insert failed: room=%s err=%v", run.Room, err)
			continue
		}
		s.written.Add(1)
	}
}

// Record 非阻塞入队
func (s *DB) Record(r Run) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{run: r}:
	default:
		s.dropped.Add(1)
	}
}

// Flush 等待此前入队的记录全部写完
func (s *DB) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent 最近的运行摘要，新的在前；room 为空时不过滤
func (s *DB) Recent(ctx context.Context, room string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT room,seed,started_at,ended_at,ticks,spawned,recycled,forced,strict_count,emergency,fallback,entities,consumed,checkpoints,max_height_m,reason FROM runs`
	args := []any{}
	if room != "" {
		q += ` WHERE room = ?`
		args = append(args, room)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, q), args...)
	if err != nil {
		return nil, fmt.Errorf("statsdb: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			started, ended    string
			ticks, spawned    int64
			recycled, forced  int64
			strict, emergency int64
			fallback, ents    int64
			consumed, cps     int64
		)
		if err := rows.Scan(&r.Room, &r.Seed, &started, &ended, &ticks, &spawned, &recycled, &forced,
			&strict, &emergency, &fallback, &ents, &consumed, &cps, &r.MaxHeightM, &r.Reason); err != nil {
			return nil, fmt.Errorf("statsdb: scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.EndedAt, _ = time.Parse(time.RFC3339Nano, ended)
		r.Ticks, r.Spawned, r.Recycled, r.Forced = uint64(ticks), uint64(spawned), uint64(recycled), uint64(forced)
		r.Strict, r.Emergency, r.Fallback = uint64(strict), uint64(emergency), uint64(fallback)
		r.Entities, r.Consumed, r.Checkpoints = uint64(ents), uint64(consumed), uint64(cps)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DB) Stats() QueueStats {
	return QueueStats{
		Written:       s.written.Load(),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}

// Close 写完队列后关闭连接；调用方须保证之后不再 Record
func (s *DB) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
