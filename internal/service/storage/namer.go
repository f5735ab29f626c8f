package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TimestampLayout is the capture timestamp embedded in stored file names.
const TimestampLayout = "20060102_150405"

// Namer hands out unique "<prefix>_<timestamp>[_<n>].jpg" names within one directory.
// Names issued within the same second get an increasing suffix, and names
// already present on disk are skipped, so a caller never receives a name
// that another caller holds or that survived a restart.
type Namer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu        sync.Mutex
	lastStamp string
	seq       int
}

// NewNamer creates a Namer for dir; the directory is created if missing.
func NewNamer(dir, prefix string) (*Namer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &Namer{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
	}, nil
}

// Next returns a fresh file name and its full path.
func (n *Namer) Next() (string, string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	stamp := n.now().Format(TimestampLayout)
	if stamp == n.lastStamp {
		n.seq++
	} else {
		n.lastStamp = stamp
		n.seq = 0
	}

	for {
		name := n.format(stamp, n.seq)
		path := filepath.Join(n.dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return name, path
		}
		n.seq++
	}
}

func (n *Namer) format(stamp string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s_%s.jpg", n.prefix, stamp)
	}
	return fmt.Sprintf("%s_%s_%d.jpg", n.prefix, stamp, seq)
}
