package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "alertbot/pkg/logx"

	"github.com/spf13/afero"
)

// compactEvery bounds journal growth between snapshots.
const compactEvery = 256

// fileStore keeps everything in memory and persists it as:
//   - <prefix>.snapshot.json  (periodic full snapshot)
//   - <prefix>.journal.jsonl  (append-only mutations since the snapshot)
//   - <prefix>.audit.jsonl    (append-only audit log)
type fileStore struct {
	fs   afero.Fs
	log  logx.Logger
	lock *os.File // nil unless backed by the OS filesystem

	mu sync.Mutex

	snapshotPath string
	auditPath    string
	journal      afero.File
	audit        afero.File
	writes       int

	state fileState
}

type fileState struct {
	Seq   int64             `json:"seq"`
	Recs  map[string]Record `json:"notifications"`
	Dedup map[string]int64  `json:"dedup"` // unix milli
}

type journalOp struct {
	Op    string  `json:"op"` // put|del|clear|dedup
	Rec   *Record `json:"rec,omitempty"`
	ID    string  `json:"id,omitempty"`
	Key   string  `json:"key,omitempty"`
	Until int64   `json:"until,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	// State lives in memory, so one process at a time may hold the files.
	var lock *os.File
	if _, ok := fs.(*afero.OsFs); ok {
		l, err := lockFile(prefix + ".lock")
		if err != nil {
			return nil, err
		}
		lock = l
	}

	s := &fileStore{
		fs:           fs,
		log:          log,
		lock:         lock,
		snapshotPath: prefix + ".snapshot.json",
		auditPath:    prefix + ".audit.jsonl",
		state:        fileState{Recs: map[string]Record{}, Dedup: map[string]int64{}},
	}
	if err := s.loadSnapshot(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("snapshot unreadable; starting from journal", logx.Err(err))
	}
	journalPath := prefix + ".journal.jsonl"
	replayed, err := s.replay(journalPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("journal replay stopped early", logx.Err(err))
	}
	s.pruneDedup()

	jf, err := fs.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = unlockFile(lock)
		return nil, err
	}
	af, err := fs.OpenFile(s.auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = jf.Close()
		_ = unlockFile(lock)
		return nil, err
	}
	s.journal = jf
	s.audit = af
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("records", len(s.state.Recs)), logx.Int("replayed", replayed))
	return s, nil
}

func (s *fileStore) loadSnapshot() error {
	f, err := s.fs.Open(s.snapshotPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var st fileState
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return err
	}
	s.state.Seq = st.Seq
	for k, v := range st.Recs {
		s.state.Recs[k] = v
	}
	for k, v := range st.Dedup {
		s.state.Dedup[k] = v
	}
	return nil
}

func (s *fileStore) replay(path string) (int, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var op journalOp
		if err := json.Unmarshal(sc.Bytes(), &op); err != nil {
			// A torn final line after a crash is expected.
			continue
		}
		s.apply(op)
		n++
	}
	return n, sc.Err()
}

func (s *fileStore) apply(op journalOp) {
	switch op.Op {
	case "put":
		if op.Rec == nil {
			return
		}
		if op.Rec.Seq > s.state.Seq {
			s.state.Seq = op.Rec.Seq
		}
		s.state.Recs[op.Rec.ID] = *op.Rec
	case "del":
		delete(s.state.Recs, op.ID)
	case "clear":
		s.state.Recs = map[string]Record{}
	case "dedup":
		s.state.Dedup[op.Key] = op.Until
	}
}

// writeLocked journals op, then applies it. Callers hold s.mu.
func (s *fileStore) writeLocked(op journalOp) error {
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(op); err != nil {
		return err
	}
	s.apply(op)
	s.writes++
	if s.writes >= compactEvery {
		s.writes = 0
		if err := s.compactLocked(); err != nil {
			s.log.Debug("compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	s.pruneDedup()
	tmp := s.snapshotPath + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.state); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func (s *fileStore) pruneDedup() {
	now := time.Now().UnixMilli()
	for k, v := range s.state.Dedup {
		if v < now {
			delete(s.state.Dedup, k)
		}
	}
}

func (s *fileStore) PutNotification(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.state.Recs[rec.ID]; ok {
		rec.Seq = old.Seq
	} else {
		rec.Seq = s.state.Seq + 1
	}
	c := cloneRecord(*rec)
	return s.writeLocked(journalOp{Op: "put", Rec: &c})
}

func (s *fileStore) GetNotification(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return Record{}, ErrClosed
	}
	r, ok := s.state.Recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(r), nil
}

func (s *fileStore) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Recs[id]; !ok {
		if s.journal == nil {
			return ErrClosed
		}
		return ErrNotFound
	}
	return s.writeLocked(journalOp{Op: "del", ID: id})
}

func (s *fileStore) ListNotifications(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	out := make([]Record, 0, len(s.state.Recs))
	for _, r := range s.state.Recs {
		out = append(out, cloneRecord(r))
	}
	sortRecords(out)
	return out, nil
}

func (s *fileStore) DeleteAllNotifications(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.state.Recs)
	if err := s.writeLocked(journalOp{Op: "clear"}); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *fileStore) CountUnread(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return 0, ErrClosed
	}
	n := 0
	for _, r := range s.state.Recs {
		if !r.Read {
			n++
		}
	}
	return n, nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audit == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.audit).Encode(e)
}

// ListAudit scans the audit log and keeps the newest limit entries.
func (s *fileStore) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audit == nil {
		return nil, ErrClosed
	}
	limit = auditLimit(limit)
	f, err := s.fs.Open(s.auditPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ring []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		ring = append(ring, e)
		if len(ring) > limit {
			ring = ring[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
	return ring, nil
}

func (s *fileStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(journalOp{Op: "dedup", Key: key, Until: until.UnixMilli()})
}

func (s *fileStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.state.Dedup[strings.TrimSpace(key)]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// Close writes a final snapshot so the next open skips the replay.
func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.compactLocked()
	if cerr := s.journal.Close(); err == nil {
		err = cerr
	}
	if cerr := s.audit.Close(); err == nil {
		err = cerr
	}
	s.journal = nil
	s.audit = nil
	if cerr := unlockFile(s.lock); err == nil {
		err = cerr
	}
	s.lock = nil
	return err
}
