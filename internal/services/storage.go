package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	. "snow-extractor/internal/common"
	. "snow-extractor/internal/interfaces"
	"snow-extractor/internal/models"
)

const (
	ticketsBucket  = "tickets"
	settingsBucket = "settings"
	metadataBucket = "metadata"
	lastUpdateKey  = "last_update"
)

type storage struct {
	db     *bolt.DB
	config *StorageConfig
}

// NewStorage opens the bbolt database holding settings and the session's
// ticket collection.
func NewStorage(config *StorageConfig) (Storage, error) {
	dbDir := filepath.Dir(config.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(config.DatabasePath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{ticketsBucket, settingsBucket, metadataBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &storage{
		db:     db,
		config: config,
	}, nil
}

func (s *storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns a stored setting, or defaultValue when absent or unreadable
func (s *storage) Get(key, defaultValue string) string {
	value := defaultValue
	_ = s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket([]byte(settingsBucket)).Get([]byte(key)); data != nil {
			value = string(data)
		}
		return nil
	})
	return value
}

func (s *storage) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(settingsBucket)).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return WrapError(err, ErrorTypeStorage, "setting_write_failed", fmt.Sprintf("failed to save setting %s", key))
	}
	return nil
}

// SaveTickets replaces the stored collection. Keys are zero-padded positions
// so a cursor walk returns tickets in collection order.
func (s *storage) SaveTickets(tickets []models.Ticket) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(ticketsBucket)) != nil {
			if err := tx.DeleteBucket([]byte(ticketsBucket)); err != nil {
				return err
			}
		}
		bucket, err := tx.CreateBucket([]byte(ticketsBucket))
		if err != nil {
			return err
		}

		for i, ticket := range tickets {
			data, err := json.Marshal(ticket)
			if err != nil {
				return fmt.Errorf("failed to marshal ticket %s: %w", ticket.SysID, err)
			}
			key := []byte(fmt.Sprintf("%010d", i))
			if err := bucket.Put(key, data); err != nil {
				return fmt.Errorf("failed to save ticket %s: %w", ticket.SysID, err)
			}
		}

		now, _ := time.Now().MarshalBinary()
		return tx.Bucket([]byte(metadataBucket)).Put([]byte(lastUpdateKey), now)
	})
}

func (s *storage) LoadTickets() ([]models.Ticket, error) {
	var tickets []models.Ticket

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(ticketsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ticket models.Ticket
			if err := json.Unmarshal(v, &ticket); err != nil {
				continue
			}
			tickets = append(tickets, ticket)
		}
		return nil
	})

	return tickets, err
}

func (s *storage) ClearTickets() error {
	return s.SaveTickets(nil)
}

// GetLastUpdate returns when the collection was last written, or "" if never
func (s *storage) GetLastUpdate() (string, error) {
	var lastUpdate time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(metadataBucket)).Get([]byte(lastUpdateKey))
		if data == nil {
			return nil
		}
		return lastUpdate.UnmarshalBinary(data)
	})
	if err != nil {
		return "", err
	}

	if lastUpdate.IsZero() {
		return "", nil
	}
	return lastUpdate.Format("2006-01-02 15:04"), nil
}
