package host

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"

	// Blank-imported database/sql drivers backing the file-channel
	// reference implementation below, grounded on
	// sentra/internal/database/database.go's driver set.
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	// Pure-Go sqlite backend, selected for bare "sqlite://" DSNs so a
	// cgo-free build still gets a working default file channel store.
	_ "modernc.org/sqlite"

	basicerrors "basiccore/internal/errors"
)

// schemeDriver maps a DSN URL scheme to its database/sql driver name and
// the DSN string database/sql.Open expects for that driver.
func schemeDriver(dsn string) (driver, sqlDSN string, err error) {
	i := strings.Index(dsn, "://")
	if i <= 0 {
		return "sqlite", dsn, nil
	}
	scheme := strings.ToLower(dsn[:i])
	rest := dsn[i+3:] // strip "scheme://"
	switch scheme {
	case "mysql":
		return "mysql", rest, nil
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "sqlite3":
		return "sqlite3", rest, nil
	case "sqlite":
		return "sqlite", rest, nil
	case "sqlserver":
		return "sqlserver", dsn, nil
	default:
		return "", "", fmt.Errorf("unrecognized DSN scheme %q", scheme)
	}
}

// Mode selects how Open treats a missing file (spec §6.1's
// OPENIN/OPENOUT/OPENUP distinction).
type Mode int

const (
	ModeIn Mode = iota
	ModeOut
	ModeUp
)

// channel is one open file-channel's in-memory state: the owning
// connection, its row key and a cursor (PTR#/GETPTR-SETPTR).
type channel struct {
	db     *sql.DB
	table  string
	path   string
	cursor int64
	data   []byte
	dirty  bool
}

// ChannelManager is the §6.1 reference backend: each open channel is
// a row in a `bbc_files` table (path, offset-addressable BLOB) in
// whichever database/sql-compatible store the DSN names, following
// sentra/internal/database/database.go's pattern of a handle map
// guarded by one mutex, connections cached per DSN.
type ChannelManager struct {
	mu      sync.Mutex
	conns   map[string]*sql.DB
	chans   map[int]*channel
	nextFD  int
}

// NewChannelManager creates an empty manager; connections are opened
// lazily on first Open call per DSN.
func NewChannelManager() *ChannelManager {
	return &ChannelManager{
		conns:  make(map[string]*sql.DB),
		chans:  make(map[int]*channel),
		nextFD: 1,
	}
}

func (m *ChannelManager) connFor(dsn string) (*sql.DB, error) {
	if db, ok := m.conns[dsn]; ok {
		return db, nil
	}
	driver, sqlDSN, err := schemeDriver(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "dbchannels: resolving DSN")
	}
	db, err := sql.Open(driver, sqlDSN)
	if err != nil {
		return nil, errors.Wrap(err, "dbchannels: opening connection")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS bbc_files (path TEXT PRIMARY KEY, data BLOB)`); err != nil {
		return nil, errors.Wrap(err, "dbchannels: creating bbc_files table")
	}
	m.conns[dsn] = db
	return db, nil
}

// Open implements OSOPEN: resolves path against the DSN's bbc_files
// table, creating an empty row for OPENOUT/OPENUP when absent, and
// returns a new channel handle.
func (m *ChannelManager) Open(dsn, path string, mode Mode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	db, err := m.connFor(dsn)
	if err != nil {
		return 0, err
	}

	var data []byte
	row := db.QueryRow(`SELECT data FROM bbc_files WHERE path = ?`, path)
	err = row.Scan(&data)
	switch {
	case err == sql.ErrNoRows:
		if mode == ModeIn {
			return 0, basicerrors.New(basicerrors.NoSuchVariable, 0)
		}
		if _, err := db.Exec(`INSERT INTO bbc_files (path, data) VALUES (?, ?)`, path, []byte{}); err != nil {
			return 0, errors.Wrap(err, "dbchannels: creating file row")
		}
		data = nil
	case err != nil:
		return 0, errors.Wrap(err, "dbchannels: reading file row")
	}

	fd := m.nextFD
	m.nextFD++
	cur := int64(0)
	if mode == ModeUp {
		cur = int64(len(data))
	}
	m.chans[fd] = &channel{db: db, table: "bbc_files", path: path, data: data, cursor: cur}
	return fd, nil
}

// Shut implements OSSHUT: flushes any pending write and drops the
// handle. fd == 0 is a no-op (spec: CLOSE#0 closes nothing, reserved).
func (m *ChannelManager) Shut(fd int) error {
	if fd == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chans[fd]
	if !ok {
		return basicerrors.New(basicerrors.NoSuchVariable, 0)
	}
	if err := m.flush(ch); err != nil {
		return err
	}
	delete(m.chans, fd)
	return nil
}

// CloseAll flushes and drops every open channel, for Host.Shutdown.
func (m *ChannelManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fd, ch := range m.chans {
		m.flush(ch)
		delete(m.chans, fd)
	}
	for dsn, db := range m.conns {
		db.Close()
		delete(m.conns, dsn)
	}
}

func (m *ChannelManager) flush(ch *channel) error {
	if !ch.dirty {
		return nil
	}
	_, err := ch.db.Exec(`UPDATE bbc_files SET data = ? WHERE path = ?`, ch.data, ch.path)
	if err != nil {
		return errors.Wrap(err, "dbchannels: flushing file row")
	}
	ch.dirty = false
	return nil
}

func (m *ChannelManager) get(fd int) (*channel, error) {
	ch, ok := m.chans[fd]
	if !ok {
		return nil, basicerrors.New(basicerrors.NoSuchVariable, 0)
	}
	return ch, nil
}

// BGet implements the BGET# function: reads one byte at the cursor
// and advances it.
func (m *ChannelManager) BGet(fd int) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return 0, err
	}
	if ch.cursor >= int64(len(ch.data)) {
		return 0, basicerrors.New(basicerrors.OutOfData, 0)
	}
	b := ch.data[ch.cursor]
	ch.cursor++
	return b, nil
}

// BPut implements the BPUT# statement: writes one byte at the cursor,
// extending the backing buffer if the cursor is at or past its end,
// and advances the cursor.
func (m *ChannelManager) BPut(fd int, b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return err
	}
	if ch.cursor >= int64(len(ch.data)) {
		grown := make([]byte, ch.cursor+1)
		copy(grown, ch.data)
		ch.data = grown
	}
	ch.data[ch.cursor] = b
	ch.cursor++
	ch.dirty = true
	return m.flush(ch)
}

// GetPtr implements PTR# as an rvalue: the channel's current cursor.
func (m *ChannelManager) GetPtr(fd int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return 0, err
	}
	return ch.cursor, nil
}

// SetPtr implements PTR# as an lvalue: repositions the cursor.
func (m *ChannelManager) SetPtr(fd int, pos int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return err
	}
	if pos < 0 {
		return basicerrors.New(basicerrors.BadUseOfArray, 0)
	}
	ch.cursor = pos
	return nil
}

// GetExt implements EXT#: the channel's current length in bytes.
func (m *ChannelManager) GetExt(fd int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return 0, err
	}
	return int64(len(ch.data)), nil
}

// GetEof implements EOF#: true once the cursor has reached the end.
func (m *ChannelManager) GetEof(fd int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, err := m.get(fd)
	if err != nil {
		return false, err
	}
	return ch.cursor >= int64(len(ch.data)), nil
}
