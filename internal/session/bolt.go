package session

import (
	"fmt"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var sessionsBucket = []byte("sessions")

// BoltStore keeps sessions in memory and writes them through to a bbolt
// file so flows survive a restart. Write failures are logged only.
type BoltStore struct {
	*MemoryStore
	db     *bbolt.DB
	logger *zap.Logger
}

// OpenBoltStore opens (or creates) the session file at path and loads every
// stored session. Sessions left in ModeGenerating are moved back to the mode
// their flow retries from, since the job that owned them is gone.
func OpenBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	s := &BoltStore{
		MemoryStore: NewMemoryStore(),
		db:          db,
		logger:      logger,
	}

	var recovered []int64
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(sessionsBucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var sess Session
			if err := json.Unmarshal(v, &sess); err != nil {
				logger.Warn("Dropping unreadable session", zap.ByteString("key", k), zap.Error(err))
				return nil
			}
			if sess.Mode == ModeGenerating {
				sess.Mode = RetryMode(sess.Pending)
				if sess.Pending != nil {
					sess.Pending.JobID = ""
				}
				recovered = append(recovered, sess.UserID)
			}
			if sess.Mode == "" {
				return nil
			}
			s.MemoryStore.put(&sess)
			return nil
		})
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	for _, userID := range recovered {
		if sess, ok := s.MemoryStore.Get(userID); ok {
			s.persist(sess)
		} else {
			s.remove(userID)
		}
	}

	logger.Info("Session store loaded",
		zap.String("path", path),
		zap.Int("sessions", s.Len()),
		zap.Int("recovered_generations", len(recovered)),
	)
	return s, nil
}

// Set replaces the user's session and persists it
func (s *BoltStore) Set(userID int64, mode Mode, pending *Pending) {
	s.MemoryStore.Set(userID, mode, pending)
	if sess, ok := s.MemoryStore.Get(userID); ok {
		s.persist(sess)
	}
}

// Clear removes the user's session from memory and disk
func (s *BoltStore) Clear(userID int64) {
	s.MemoryStore.Clear(userID)
	s.remove(userID)
}

// Close closes the underlying bbolt file
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) persist(sess Session) {
	data, err := json.Marshal(sess)
	if err != nil {
		s.logger.Error("Failed to encode session", zap.Int64("user_id", sess.UserID), zap.Error(err))
		return
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put(sessionKey(sess.UserID), data)
	})
	if err != nil {
		s.logger.Error("Failed to persist session", zap.Int64("user_id", sess.UserID), zap.Error(err))
	}
}

func (s *BoltStore) remove(userID int64) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete(sessionKey(userID))
	})
	if err != nil {
		s.logger.Error("Failed to delete session", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func sessionKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}
