package results

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colorfulnotion/femtobench/log"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	runPrefix = []byte("run/")
	seqKey    = []byte("meta/seq")
)

// Run is an archived report with the configuration that produced it.
type Run struct {
	ID         uint64    `json:"id"`
	Label      string    `json:"label"`
	Strategy   string    `json:"strategy"`
	Context    string    `json:"context"`
	Program    string    `json:"program"`
	Iterations uint32    `json:"iterations"`
	Recorded   time.Time `json:"recorded"`
	Complete   bool      `json:"complete"`
	Rows       []Row     `json:"rows"`
}

// Store archives runs in LevelDB under run/<big-endian id>.
type Store struct {
	db *leveldb.DB
}

// OpenStore opens or creates the archive at path; an empty path keeps it in
// memory.
func OpenStore(path string) (*Store, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open archive at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func runKey(id uint64) []byte {
	key := make([]byte, len(runPrefix)+8)
	copy(key, runPrefix)
	binary.BigEndian.PutUint64(key[len(runPrefix):], id)
	return key
}

func (s *Store) nextID() (uint64, error) {
	data, err := s.db.Get(seqKey, nil)
	if err == leveldb.ErrNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt sequence %x", data)
	}
	return binary.BigEndian.Uint64(data) + 1, nil
}

// Put assigns run an id and stores it.
func (s *Store) Put(run *Run) error {
	id, err := s.nextID()
	if err != nil {
		return err
	}
	run.ID = id
	if run.Recorded.IsZero() {
		run.Recorded = time.Now().UTC()
	}
	value, err := json.Marshal(run)
	if err != nil {
		return err
	}
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], id)
	batch := new(leveldb.Batch)
	batch.Put(runKey(id), value)
	batch.Put(seqKey, seq[:])
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("Put run %d: %w", id, err)
	}
	log.Debug(log.ResultsMonitoring, "archived run", "id", id, "label", run.Label, "rows", len(run.Rows))
	return nil
}

// Get returns (nil, false, nil) if id is not archived.
func (s *Store) Get(id uint64) (*Run, bool, error) {
	data, err := s.db.Get(runKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get run %d: %w", id, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, false, fmt.Errorf("decode run %d: %w", id, err)
	}
	return &run, true, nil
}

func (s *Store) Delete(id uint64) error {
	return s.db.Delete(runKey(id), nil)
}

// List returns every archived run in id order.
func (s *Store) List() ([]*Run, error) {
	iter := s.db.NewIterator(util.BytesPrefix(runPrefix), nil)
	defer iter.Release()
	var runs []*Run
	for iter.Next() {
		var run Run
		if err := json.Unmarshal(iter.Value(), &run); err != nil {
			return nil, fmt.Errorf("decode %x: %w", iter.Key(), err)
		}
		runs = append(runs, &run)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
