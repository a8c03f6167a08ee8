// Package summary はAI要約のフラットファイルキャッシュを提供する。
// キャッシュは単一のJSONドキュメントで、各操作でファイル全体を読み書きする。
package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
)

// ErrNotFound は指定キーの要約が存在しないことを示す。
var ErrNotFound = errors.New("summary not found")

// Store はJSONファイルをバックエンドとする要約キャッシュ。
// 同一プロセス内の書き込みはミューテックスで直列化する。
// 複数プロセスからの同時書き込みは最後の書き込みが勝つ。
type Store struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// NewStore はStoreの新しいインスタンスを生成する。
// ファイルは最初の書き込み時に作成される。
func NewStore(path string) *Store {
	return &Store{path: path, clock: time.Now}
}

// Path はキャッシュファイルのパスを返す。
func (s *Store) Path() string {
	return s.path
}

// Get は指定キーの要約を返す。存在しない場合はErrNotFoundを返す。
func (s *Store) Get(key string) (*model.SummaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	entry, ok := entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Put は要約を保存する。同じキーが存在する場合は上書きする。
// 書き込みは一時ファイルへの書き出しとリネームで行い、失敗時に既存の内容を壊さない。
func (s *Store) Put(key, text, messageType, messageID string) error {
	if key == "" {
		return errors.New("summary key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[key] = model.SummaryEntry{
		Summary:     text,
		MessageType: messageType,
		MessageID:   messageID,
		Timestamp:   s.clock().UTC(),
	}

	return s.save(entries)
}

// All はキャッシュ全体を返す。
func (s *Store) All() (map[string]model.SummaryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// load はキャッシュファイルを読み込む。ファイルが存在しない場合は空のキャッシュとする。
func (s *Store) load() (map[string]model.SummaryEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]model.SummaryEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read summary cache: %w", err)
	}

	entries := make(map[string]model.SummaryEntry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode summary cache: %w", err)
	}
	return entries, nil
}

// save はキャッシュ全体を一時ファイルに書き出し、リネームで置き換える。
func (s *Store) save(entries map[string]model.SummaryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary cache: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create summary cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace summary cache: %w", err)
	}
	return nil
}
