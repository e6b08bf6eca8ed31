package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"veinmine.ai/internal/sim/catalogs"
	"veinmine.ai/internal/sim/tuning"
	"veinmine.ai/internal/sim/vein"
)

// SQLiteIndex is a queryable read model of vein runs. Writes are queued and
// applied by a single writer goroutine; the JSONL journal stays the source of
// truth, so a full queue drops rows instead of stalling the world loop.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropStart atomic.Uint64
	dropStep  atomic.Uint64
	dropEnd   atomic.Uint64
}

var _ vein.Observer = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqStart reqKind = iota + 1
	reqStep
	reqEnd
	reqFlush
)

type req struct {
	kind reqKind

	info vein.RunInfo
	rep  vein.StepReport
	out  vein.Outcome
	at   time.Time

	done chan struct{}
}

// RunRow is one row of the runs table.
type RunRow struct {
	RunID     string `json:"run_id"`
	AgentID   string `json:"agent_id"`
	Seed      [3]int `json:"seed"`
	StartTick uint64 `json:"start_tick"`
	EndTick   uint64 `json:"end_tick,omitempty"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Processed int64  `json:"processed"`
	Destroyed int64  `json:"destroyed"`
	Steps     int    `json:"steps"`
	Cells     int64  `json:"cells"`
	StartedAt string `json:"started_at"`
	EndedAt   string `json:"ended_at,omitempty"`
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropStart     uint64 `json:"drop_start_total"`
	DropStep      uint64 `json:"drop_step_total"`
	DropEnd       uint64 `json:"drop_end_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
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
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			seed_x INTEGER NOT NULL,
			seed_y INTEGER NOT NULL,
			seed_z INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			end_tick INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			processed INTEGER NOT NULL DEFAULT 0,
			destroyed INTEGER NOT NULL DEFAULT 0,
			steps INTEGER NOT NULL DEFAULT 0,
			cells INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_agent_tick ON runs(agent_id, start_tick);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status, reason);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RunStarted(info vein.RunInfo) {
	s.enqueue(req{kind: reqStart, info: info, at: time.Now()}, &s.dropStart)
}

func (s *SQLiteIndex) StepDone(info vein.RunInfo, rep vein.StepReport) {
	s.enqueue(req{kind: reqStep, info: info, rep: rep}, &s.dropStep)
}

func (s *SQLiteIndex) RunEnded(info vein.RunInfo, out vein.Outcome) {
	s.enqueue(req{kind: reqEnd, info: info, out: out, at: time.Now()}, &s.dropEnd)
}

// Flush waits until every queued write is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return errors.New("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
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

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropStart:     s.dropStart.Load(),
		DropStep:      s.dropStep.Load(),
		DropEnd:       s.dropEnd.Load(),
	}
}

// UpsertCatalogs records the digests of the configuration the server runs with.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, err := os.ReadFile(filepath.Join(configDir, "blocks.json")); err == nil {
		rows = append(rows, kv{name: "blocks_defs", digest: cats.Blocks.DefsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{name: "blocks_palette", digest: cats.Blocks.PaletteDigest, json: b})
	}
	if b, err := os.ReadFile(filepath.Join(configDir, "items.json")); err == nil {
		rows = append(rows, kv{name: "items_defs", digest: cats.Items.DefsDigest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const runColumns = `run_id,agent_id,seed_x,seed_y,seed_z,start_tick,end_tick,status,reason,message,processed,destroyed,steps,cells,started_at,ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (RunRow, error) {
	var r RunRow
	var start, end int64
	err := sc.Scan(&r.RunID, &r.AgentID, &r.Seed[0], &r.Seed[1], &r.Seed[2], &start, &end,
		&r.Status, &r.Reason, &r.Message, &r.Processed, &r.Destroyed, &r.Steps, &r.Cells, &r.StartedAt, &r.EndedAt)
	r.StartTick = uint64(start)
	r.EndTick = uint64(end)
	return r, err
}

// GetRun looks up a run by id.
func (s *SQLiteIndex) GetRun(ctx context.Context, id string) (RunRow, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id=?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, false, nil
	}
	if err != nil {
		return RunRow{}, false, err
	}
	return r, true, nil
}

// AgentRuns lists an agent's runs, newest first.
func (s *SQLiteIndex) AgentRuns(ctx context.Context, agentID string, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE agent_id=? ORDER BY start_tick DESC, started_at DESC LIMIT ?`,
		agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunRow
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,agent_id,seed_x,seed_y,seed_z,start_tick,status,started_at) VALUES(?,?,?,?,?,?,?,?)`)
	updateStep, _ := s.db.Prepare(`UPDATE runs SET processed=?, steps=steps+1, cells=cells+? WHERE run_id=?`)
	updateEnd, _ := s.db.Prepare(`UPDATE runs SET end_tick=?, status=?, reason=?, message=?, processed=?, destroyed=?, steps=?, ended_at=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, updateStep, updateEnd} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 250 * time.Millisecond
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	// Idle transactions are committed on the ticker so readers are not held
	// behind the single connection.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		var r req
		select {
		case <-ticker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		case rr, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = rr
		}

		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqStart:
			exec(insertRun, r.info.ID, r.info.ActorID, r.info.Seed.X, r.info.Seed.Y, r.info.Seed.Z,
				int64(r.info.StartStep), string(vein.StatusRunning), r.at.UTC().Format(time.RFC3339Nano))
		case reqStep:
			exec(updateStep, r.rep.Processed, r.rep.Cells, r.info.ID)
		case reqEnd:
			msg := ""
			if r.out.Err != nil {
				msg = r.out.Err.Error()
			}
			exec(updateEnd, int64(r.out.EndStep), string(r.out.Status), r.out.Reason, msg,
				r.out.Processed, r.out.Destroyed, r.out.Steps, r.at.UTC().Format(time.RFC3339Nano), r.info.ID)
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
