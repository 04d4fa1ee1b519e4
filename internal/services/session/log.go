package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"samor/internal/domain"
)

// Log is the ordered, append-only record of decrypted messages for one
// Manager. Sequence numbers keep growing across Reset.
type Log struct {
	mu      sync.Mutex
	records []domain.Record
	next    uint64
	changed chan struct{}
	now     func() time.Time
}

// NewLog returns an empty log whose first record gets Seq 1.
func NewLog() *Log {
	return &Log{next: 1, changed: make(chan struct{}), now: time.Now}
}

// Append assigns the next sequence number and timestamp to r, stores it and
// wakes every waiter.
func (l *Log) Append(r domain.Record) domain.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.Seq = l.next
	l.next++
	if r.At.IsZero() {
		r.At = l.now().UTC()
	}
	l.records = append(l.records, r)

	close(l.changed)
	l.changed = make(chan struct{})
	return r
}

// Len reports how many records are retained.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Records returns a copy of every retained record.
func (l *Log) Records() []domain.Record {
	return l.Since(0)
}

// Since returns the retained records with Seq greater than seq, oldest first.
func (l *Log) Since(seq uint64) []domain.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinceLocked(seq)
}

func (l *Log) sinceLocked(seq uint64) []domain.Record {
	i := sort.Search(len(l.records), func(i int) bool { return l.records[i].Seq > seq })
	if i == len(l.records) {
		return nil
	}
	out := make([]domain.Record, len(l.records)-i)
	copy(out, l.records[i:])
	return out
}

// Changed returns a channel that is closed on the next Append or Reset.
func (l *Log) Changed() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changed
}

// Wait blocks until at least one record newer than seq exists and returns all
// of them.
func (l *Log) Wait(ctx context.Context, seq uint64) ([]domain.Record, error) {
	for {
		l.mu.Lock()
		recs := l.sinceLocked(seq)
		ch := l.changed
		l.mu.Unlock()

		if len(recs) > 0 {
			return recs, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Subscribe streams every retained record and then each new one, in order,
// until ctx is done. The channel is closed when the stream ends.
func (l *Log) Subscribe(ctx context.Context) <-chan domain.Record {
	out := make(chan domain.Record)
	go func() {
		defer close(out)
		var last uint64
		for {
			recs, err := l.Wait(ctx, last)
			if err != nil {
				return
			}
			for _, r := range recs {
				select {
				case out <- r:
					last = r.Seq
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Reset drops every retained record. The next Append continues the sequence.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	close(l.changed)
	l.changed = make(chan struct{})
}
