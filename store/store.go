package store

import (
	"database/sql"
	"time"

	"github.com/wgdzlh/georef"
	"github.com/wgdzlh/georef/log"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrNotInitialized = errors.New("history store not initialized")

// 批处理历史记录（SQLite）
type Store struct {
	DB     *sql.DB
	logTag string
}

// 打开（或新建）历史库并建表
func New(path string) (s *Store, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return
	}
	s = &Store{DB: db, logTag: "HistoryStore:"}
	if err = s.ensureSchema(); err != nil {
		db.Close()
		s = nil
		return
	}
	log.Info(s.logTag+"history store opened", zap.String("path", path))
	return
}

func (s *Store) ensureSchema() (err error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
            id TEXT PRIMARY KEY,
            state TEXT NOT NULL,
            output_dir TEXT,
            total INTEGER,
            succeeded INTEGER,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS batch_items (
            batch_id TEXT NOT NULL,
            seq INTEGER NOT NULL,
            input_path TEXT,
            output_path TEXT,
            success BOOLEAN,
            status TEXT,
            stage TEXT,
            kind TEXT,
            message TEXT,
            matches INTEGER,
            inliers INTEGER,
            resolution REAL,
            duration_ms INTEGER,
            PRIMARY KEY (batch_id, seq)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_batch_items_input ON batch_items(input_path);`,
	}
	for _, stmt := range stmts {
		if _, err = s.DB.Exec(stmt); err != nil {
			return
		}
	}
	return
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

type BatchRecord struct {
	ID         string
	State      string
	OutputDir  string
	Total      int
	Succeeded  int
	StartedAt  time.Time
	FinishedAt time.Time
}

type ItemRecord struct {
	BatchID    string
	Seq        int
	Input      string
	Output     string
	Success    bool
	Status     string
	Stage      string
	Kind       string
	Message    string
	Matches    int
	Inliers    int
	Resolution float64
	Duration   time.Duration
}

// 记录一次批处理及每张影像的结果（同一批次重复写入时覆盖）
func (s *Store) RecordBatch(rep *georef.BatchReport) (err error) {
	if s == nil {
		return
	}
	if rep == nil || rep.ID == "" {
		err = errors.New("batch report without id")
		return
	}
	tx, err := s.DB.Begin()
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			log.Error(s.logTag+"record batch failed", zap.String("batch", rep.ID), zap.Error(err))
			return
		}
		err = tx.Commit()
	}()
	if _, err = tx.Exec(`INSERT OR REPLACE INTO batches (id, state, output_dir, total, succeeded, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rep.ID, rep.State.String(), rep.OutputDir, len(rep.Results), len(rep.Succeeded()), rep.StartedAt, rep.FinishedAt); err != nil {
		return
	}
	if _, err = tx.Exec(`DELETE FROM batch_items WHERE batch_id=?;`, rep.ID); err != nil {
		return
	}
	for i, r := range rep.Results {
		if _, err = tx.Exec(`INSERT INTO batch_items (batch_id, seq, input_path, output_path, success, status, stage, kind, message, matches, inliers, resolution, duration_ms)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
			rep.ID, i, r.Input, r.Output, r.Success, r.Status.String(), r.Stage.String(), r.KindName(), r.Message,
			r.Matches, r.Inliers, r.GeoTransform.PixelWidth, r.Duration.Milliseconds()); err != nil {
			return
		}
	}
	return
}

// 最近的批处理，按开始时间倒序
func (s *Store) ListBatches(limit int) (recs []BatchRecord, err error) {
	if s == nil {
		err = ErrNotInitialized
		return
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.Query(`SELECT id, state, output_dir, total, succeeded, started_at, finished_at FROM batches ORDER BY started_at DESC, created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec               BatchRecord
			outDir            sql.NullString
			started, finished sql.NullTime
		)
		if err = rows.Scan(&rec.ID, &rec.State, &outDir, &rec.Total, &rec.Succeeded, &started, &finished); err != nil {
			return
		}
		rec.OutputDir = outDir.String
		rec.StartedAt = started.Time
		rec.FinishedAt = finished.Time
		recs = append(recs, rec)
	}
	err = rows.Err()
	return
}

// 某批次各影像的结果，按输入顺序
func (s *Store) Items(batchID string) (recs []ItemRecord, err error) {
	if s == nil {
		err = ErrNotInitialized
		return
	}
	rows, err := s.DB.Query(`SELECT batch_id, seq, input_path, output_path, success, status, stage, kind, message, matches, inliers, resolution, duration_ms
        FROM batch_items WHERE batch_id=? ORDER BY seq;`, batchID)
	if err != nil {
		return
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec ItemRecord
			ms  int64
		)
		if err = rows.Scan(&rec.BatchID, &rec.Seq, &rec.Input, &rec.Output, &rec.Success, &rec.Status, &rec.Stage,
			&rec.Kind, &rec.Message, &rec.Matches, &rec.Inliers, &rec.Resolution, &ms); err != nil {
			return
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		recs = append(recs, rec)
	}
	err = rows.Err()
	return
}

// 某输入影像最近一次成功的输出，监听模式据此跳过已处理的影像
func (s *Store) LastOutput(input string) (output string, ok bool, err error) {
	if s == nil {
		err = ErrNotInitialized
		return
	}
	err = s.DB.QueryRow(`SELECT i.output_path FROM batch_items i JOIN batches b ON b.id = i.batch_id
        WHERE i.input_path=? AND i.success ORDER BY b.started_at DESC LIMIT 1;`, input).Scan(&output)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return
	}
	ok = err == nil
	return
}
