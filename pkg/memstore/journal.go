package memstore

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/recordkit/pkg/codec"
)

// Journal operations
const (
	OpPut    byte = 1
	OpDelete byte = 2
)

const (
	idLength = 20 // encoded ksuid

	// entry header: [Op(1)][ID(20)][PayloadLen(4)]
	journalHeaderSize = 1 + idLength + 4
)

// JournalConfig holds configuration for a journal
type JournalConfig struct {
	FilePath      string        // Path to the journal file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
}

// JournalEntry is one replayed journal operation. Payload is the codec
// encoding of the record for OpPut and empty for OpDelete.
type JournalEntry struct {
	Op      byte
	ID      ksuid.KSUID
	Payload []byte
}

// ReplayResult describes a journal replay
type ReplayResult struct {
	EntriesReplayed int64
	BytesTruncated  int64
}

// Journal appends record operations to a file so a Store can be rebuilt
type Journal struct {
	file       *os.File
	writer     *bufio.Writer
	fsyncTimer *time.Timer
	config     JournalConfig
	mutex      sync.Mutex
	offset     int64
}

// OpenJournal opens the journal for appending, creating it if needed
func OpenJournal(config JournalConfig) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0750); err != nil {
		return nil, err
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 64 * 1024
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	j := &Journal{
		file:   file,
		writer: bufio.NewWriterSize(file, config.BufferSize),
		config: config,
		offset: offset,
	}
	if config.FsyncInterval > 0 {
		j.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			j.mutex.Lock()
			defer j.mutex.Unlock()
			_ = j.sync()
		})
	}
	return j, nil
}

// Append writes one operation and returns the offset it starts at
func (j *Journal) Append(op byte, id ksuid.KSUID, payload []byte) (int64, error) {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	header := make([]byte, journalHeaderSize)
	header[0] = op
	copy(header[1:], id.Bytes())
	binary.LittleEndian.PutUint32(header[1+idLength:], uint32(len(payload)))

	if _, err := j.writer.Write(header); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(payload); err != nil {
		return 0, err
	}
	start := j.offset
	j.offset += int64(journalHeaderSize + len(payload))

	if j.config.FsyncInterval == 0 {
		if err := j.sync(); err != nil {
			return 0, err
		}
	} else if j.fsyncTimer != nil {
		j.fsyncTimer.Reset(j.config.FsyncInterval)
	}
	return start, nil
}

// Sync forces a fsync to disk
func (j *Journal) Sync() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.sync()
}

func (j *Journal) sync() error {
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Sync()
}

// Close syncs and closes the journal
func (j *Journal) Close() error {
	j.mutex.Lock()
	defer j.mutex.Unlock()

	if j.fsyncTimer != nil {
		j.fsyncTimer.Stop()
	}
	if err := j.sync(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}

// Size returns the current size of the journal
func (j *Journal) Size() int64 {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.offset
}

func (j *Journal) Path() string {
	return j.config.FilePath
}

// ReplayJournal calls fn for every intact entry of the journal at path. A
// torn or corrupt tail, left by a crash during a write, is truncated away.
// A missing journal replays nothing.
func ReplayJournal(path string, fn func(JournalEntry) error) (*ReplayResult, error) {
	result := &ReplayResult{}
	file, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	rc := codec.NewRecordCodec()
	reader := bufio.NewReader(file)
	var offset int64
	for {
		e, n, err := readEntry(reader, rc)
		if err == io.EOF {
			break
		}
		if errors.Is(err, codec.ErrCorrupt) {
			result.BytesTruncated = stat.Size() - offset
			if err := file.Truncate(offset); err != nil {
				return nil, err
			}
			break
		}
		if err != nil {
			return nil, err
		}
		if err := fn(e); err != nil {
			return nil, errors.WithMessagef(err, "replay entry at offset %d", offset)
		}
		offset += n
		result.EntriesReplayed++
	}
	return result, nil
}

func readEntry(r *bufio.Reader, rc *codec.RecordCodec) (JournalEntry, int64, error) {
	header := make([]byte, journalHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return JournalEntry{}, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return JournalEntry{}, 0, errors.Wrap(codec.ErrCorrupt, "torn entry header")
		}
		return JournalEntry{}, 0, err
	}

	e := JournalEntry{Op: header[0]}
	id, err := ksuid.FromBytes(header[1 : 1+idLength])
	if err != nil {
		return JournalEntry{}, 0, errors.Wrap(codec.ErrCorrupt, err.Error())
	}
	e.ID = id
	if e.Op != OpPut && e.Op != OpDelete {
		return JournalEntry{}, 0, errors.Wrapf(codec.ErrCorrupt, "unknown journal op %d", e.Op)
	}

	e.Payload = make([]byte, binary.LittleEndian.Uint32(header[1+idLength:]))
	if _, err := io.ReadFull(r, e.Payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return JournalEntry{}, 0, errors.Wrap(codec.ErrCorrupt, "torn entry payload")
		}
		return JournalEntry{}, 0, err
	}
	if e.Op == OpPut {
		if _, err := rc.DecodeHeader(e.Payload); err != nil {
			return JournalEntry{}, 0, err
		}
	}
	return e, int64(journalHeaderSize + len(e.Payload)), nil
}
