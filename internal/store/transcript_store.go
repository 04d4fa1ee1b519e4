package store

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"samor/internal/domain"
	"samor/internal/services/message"
)

const transcriptVersion = 1

// transcriptFile is the JSON written to disk.
type transcriptFile struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Records []domain.Record `json:"records"`
}

// TranscriptFileStore keeps one transcript in one file.
type TranscriptFileStore struct {
	path       string
	passphrase string
	scrypt     scryptParams

	mu sync.Mutex
}

// NewTranscriptFileStore stores the transcript at path. An empty passphrase
// writes plain JSON.
func NewTranscriptFileStore(path, passphrase string) *TranscriptFileStore {
	return &TranscriptFileStore{path: path, passphrase: passphrase, scrypt: defaultScrypt}
}

// Path is the file the store writes.
func (s *TranscriptFileStore) Path() string { return s.path }

// SaveTranscript replaces the stored transcript with records.
func (s *TranscriptFileStore) SaveTranscript(records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []domain.Record{}
	}
	b, err := json.MarshalIndent(transcriptFile{
		Version: transcriptVersion,
		SavedAt: time.Now().UTC(),
		Records: records,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if s.passphrase != "" {
		if b, err = seal(s.passphrase, b, s.scrypt); err != nil {
			return fmt.Errorf("seal transcript: %w", err)
		}
	}
	return writeFile(s.path, b, 0o600)
}

// LoadTranscript reads the stored records, re-decoding each message. A
// missing file yields no records.
func (s *TranscriptFileStore) LoadTranscript() ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(s.path)
	if err != nil || b == nil {
		return nil, err
	}
	if s.passphrase != "" {
		if b, err = open(s.passphrase, b); err != nil {
			return nil, err
		}
	}

	var tf transcriptFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	if tf.Version > transcriptVersion {
		return nil, fmt.Errorf("unsupported transcript version %d", tf.Version)
	}
	for i := range tf.Records {
		msg, err := message.Decode(tf.Records[i].Raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", tf.Records[i].Seq, err)
		}
		tf.Records[i].Message = msg
	}
	return tf.Records, nil
}

var _ domain.TranscriptStore = (*TranscriptFileStore)(nil)
