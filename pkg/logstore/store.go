// Package logstore is the durable raft.Host log persistence layer,
// grounded on the teacher's flat-file WAL (pkg/wal) but backed by
// go.etcd.io/bbolt, the embedded-storage choice the rest of the
// retrieved example pack uses for this kind of durable state.
package logstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/quorumkv/raft/pkg/raft"
)

var (
	bucketMeta     = []byte("meta")
	bucketEntries  = []byte("entries")
	bucketSnapshot = []byte("snapshot")

	keyMeta     = []byte("current")
	keySnapshot = []byte("current")
)

// metaRecord is the single durable record of non-indexed instance state.
type metaRecord struct {
	Term            raft.Term
	Vote            raft.NodeID
	Leader          raft.NodeID
	DataCommitted   raft.Index
	ConfigCommitted raft.Index
}

// Store persists a single raft.Instance's log entries and metadata in a
// bbolt database file.
type Store struct {
	db *bolt.DB

	// retainedIndex is the lowest index still held in bucketEntries;
	// entries below it are served from the retained snapshot's summary.
	retainedIndex raft.Index
}

// Open opens (creating if absent) a bbolt-backed store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("logstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketEntries, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

func indexKey(i raft.Index) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(i))
	return buf
}

func encodeEntry(e raft.LogEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (raft.LogEntry, error) {
	var e raft.LogEntry
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e)
	return e, err
}

// WriteLogEntry implements raft.Host's durability callback: upsert into
// bucketEntries (indexed entries) or bucketMeta (metadata-only entries)
// inside one bbolt write transaction.
func (s *Store) WriteLogEntry(entry raft.LogEntry) {
	if err := s.writeLogEntry(entry); err != nil {
		panic(fmt.Errorf("logstore: durable write failed: %w", err))
	}
}

func (s *Store) writeLogEntry(entry raft.LogEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if !entry.IsMetadataOnly() {
			data, err := encodeEntry(entry)
			if err != nil {
				return fmt.Errorf("encode entry: %w", err)
			}
			if err := tx.Bucket(bucketEntries).Put(indexKey(entry.Index), data); err != nil {
				return err
			}
		}

		rec := metaRecord{
			DataCommitted:   entry.DataCommitted,
			ConfigCommitted: entry.ConfigCommitted,
		}
		if raw := tx.Bucket(bucketMeta).Get(keyMeta); raw != nil {
			var existing metaRecord
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&existing); err == nil {
				rec = existing
				if entry.DataCommitted > rec.DataCommitted {
					rec.DataCommitted = entry.DataCommitted
				}
				if entry.ConfigCommitted > rec.ConfigCommitted {
					rec.ConfigCommitted = entry.ConfigCommitted
				}
			}
		}
		if entry.Term != nil {
			rec.Term = *entry.Term
		}
		if entry.Leader != nil {
			rec.Leader = *entry.Leader
		}
		if entry.Vote != nil {
			rec.Vote = *entry.Vote
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		return tx.Bucket(bucketMeta).Put(keyMeta, buf.Bytes())
	})
}

// GetLogEntry implements raft.Host's replication-catchup callback.
func (s *Store) GetLogEntry(term raft.Term, start, end raft.Index) (raft.LogEntry, bool) {
	if start < s.retainedIndex {
		if snap, ok := s.loadSnapshotEntry(); ok {
			return snap, true
		}
	}

	var found raft.LogEntry
	ok := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		k, v := c.Seek(indexKey(start + 1))
		if k == nil {
			return nil
		}
		idx := raft.Index(binary.BigEndian.Uint64(k))
		if idx > end {
			return nil
		}
		e, err := decodeEntry(v)
		if err != nil {
			return nil
		}
		found, ok = e, true
		return nil
	})
	return found, ok
}

func (s *Store) loadSnapshotEntry() (raft.LogEntry, bool) {
	var e raft.LogEntry
	ok := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSnapshot).Get(keySnapshot)
		if raw == nil {
			return nil
		}
		decoded, err := decodeEntry(raw)
		if err != nil {
			return nil
		}
		e, ok = decoded, true
		return nil
	})
	return e, ok
}

// SaveSnapshot persists describing as the retained snapshot record, then
// compacts entries below its index out of bucketEntries (log compaction
// is a host concern; see SPEC_FULL.md §4.10).
func (s *Store) SaveSnapshot(describing raft.LogEntry) error {
	data, err := encodeEntry(describing)
	if err != nil {
		return fmt.Errorf("logstore: encode snapshot entry: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSnapshot).Put(keySnapshot, data); err != nil {
			return err
		}
		c := tx.Bucket(bucketEntries).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if raft.Index(binary.BigEndian.Uint64(k)) >= describing.Index {
				break
			}
			if err := tx.Bucket(bucketEntries).Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("logstore: save snapshot: %w", err)
	}
	s.retainedIndex = describing.Index
	return nil
}

// Replay feeds every durably stored entry, in index order, plus the
// trailing metadata record, into fn — intended to be raft.Instance.Recover.
func (s *Store) Replay(fn func(raft.LogEntry)) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketSnapshot).Get(keySnapshot); raw != nil {
			e, err := decodeEntry(raw)
			if err == nil {
				fn(e)
			}
		}
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			e, err := decodeEntry(v)
			if err != nil {
				return fmt.Errorf("logstore: decode entry during replay: %w", err)
			}
			fn(e)
		}
		if raw := tx.Bucket(bucketMeta).Get(keyMeta); raw != nil {
			var rec metaRecord
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err == nil {
				leader, vote := rec.Leader, rec.Vote
				fn(raft.LogEntry{
					Term:            &rec.Term,
					Leader:          &leader,
					Vote:            &vote,
					DataCommitted:   rec.DataCommitted,
					ConfigCommitted: rec.ConfigCommitted,
				})
			}
		}
		return nil
	})
}
