// Package fixtures builds extraction containers and embedded databases for tests.
package fixtures

import (
	"archive/zip"
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // SQLite driver
)

// File is one entry of a test container.
type File struct {
	Name string
	Data []byte
}

// SQLite creates a database at path by running each statement in order.
func SQLite(tb testing.TB, path string, stmts ...string) {
	tb.Helper()
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))

	db, err := sql.Open("sqlite", path)
	require.NoError(tb, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(tb, err, stmt)
	}
}

// SQLiteBytes builds a database in a temp dir and returns its bytes.
func SQLiteBytes(tb testing.TB, stmts ...string) []byte {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "fixture.db")
	SQLite(tb, path, stmts...)
	data, err := os.ReadFile(path)
	require.NoError(tb, err)
	return data
}

// ZipBytes builds a container in memory.
func ZipBytes(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		})
		require.NoError(tb, err)
		_, err = fw.Write(f.Data)
		require.NoError(tb, err)
	}
	require.NoError(tb, w.Close())
	return buf.Bytes()
}

// Zip writes a container into dir and returns its path.
func Zip(tb testing.TB, dir, name string, files ...File) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, ZipBytes(tb, files...), 0o600))
	return path
}

// MmssmsStatements creates an Android mmssms.db shaped database holding one
// incoming message.
func MmssmsStatements() []string {
	return []string{
		`CREATE TABLE android_metadata (locale TEXT)`,
		`CREATE TABLE threads (_id INTEGER PRIMARY KEY, date INTEGER, recipient_ids TEXT, snippet TEXT)`,
		`CREATE TABLE sms (
			_id INTEGER PRIMARY KEY,
			thread_id INTEGER,
			address TEXT,
			date INTEGER,
			date_sent INTEGER,
			read INTEGER,
			type INTEGER,
			body TEXT
		)`,
		`INSERT INTO threads VALUES (1, 1700000000000, '1', 'bring the stuff')`,
		`INSERT INTO sms (thread_id, address, date, date_sent, read, type, body)
			VALUES (1, '+15551234567', 1700000000000, 1700000000000, 1, 1, 'bring the stuff')`,
	}
}

// CallLogStatements creates an Android calllog.db shaped database with three calls.
func CallLogStatements() []string {
	return []string{
		`CREATE TABLE calls (
			_id INTEGER PRIMARY KEY,
			number TEXT,
			date INTEGER,
			duration INTEGER,
			type INTEGER,
			name TEXT
		)`,
		`INSERT INTO calls (number, date, duration, type, name) VALUES ('+15550000001', 1700000000000, 60, 1, 'Ann')`,
		`INSERT INTO calls (number, date, duration, type, name) VALUES ('+15550000002', 1700000100000, 0, 3, NULL)`,
		`INSERT INTO calls (number, date, duration, type, name) VALUES ('+15550000003', 1700000200000, 125, 2, 'Bob')`,
	}
}

// Contacts2Statements creates an Android contacts2.db shaped database where
// names live in raw_contacts, numbers and addresses in data, and both are
// joined by the view_data view. Alice has a phone number and an email
// address, Bob a phone number.
func Contacts2Statements() []string {
	return []string{
		`CREATE TABLE raw_contacts (_id INTEGER PRIMARY KEY, contact_id INTEGER, display_name TEXT, deleted INTEGER DEFAULT 0)`,
		`CREATE TABLE mimetypes (_id INTEGER PRIMARY KEY, mimetype TEXT)`,
		`CREATE TABLE data (
			_id INTEGER PRIMARY KEY,
			raw_contact_id INTEGER REFERENCES raw_contacts(_id),
			mimetype_id INTEGER REFERENCES mimetypes(_id),
			data1 TEXT
		)`,
		`CREATE VIEW view_data AS
			SELECT data._id AS _id,
				data.raw_contact_id AS raw_contact_id,
				raw_contacts.contact_id AS contact_id,
				raw_contacts.display_name AS display_name,
				mimetypes.mimetype AS mimetype,
				data.data1 AS data1
			FROM data
			JOIN raw_contacts ON data.raw_contact_id = raw_contacts._id
			JOIN mimetypes ON data.mimetype_id = mimetypes._id`,
		`INSERT INTO raw_contacts (_id, contact_id, display_name) VALUES (1, 1, 'Alice'), (2, 2, 'Bob')`,
		`INSERT INTO mimetypes VALUES
			(1, 'vnd.android.cursor.item/name'),
			(2, 'vnd.android.cursor.item/phone_v2'),
			(3, 'vnd.android.cursor.item/email_v2')`,
		`INSERT INTO data VALUES
			(1, 1, 1, 'Alice'),
			(2, 1, 2, '+15550001111'),
			(3, 1, 3, 'alice@example.com'),
			(4, 2, 1, 'Bob'),
			(5, 2, 2, '+15550002222')`,
	}
}

// IOSSMSStatements creates an iOS sms.db shaped database where messages
// reference their sender through handle.ROWID. The third message points at
// a handle that no longer exists.
func IOSSMSStatements() []string {
	return []string{
		`CREATE TABLE handle (ROWID INTEGER PRIMARY KEY AUTOINCREMENT UNIQUE, id TEXT NOT NULL, service TEXT)`,
		`CREATE TABLE message (
			ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
			guid TEXT,
			text TEXT,
			handle_id INTEGER DEFAULT 0,
			date INTEGER,
			is_from_me INTEGER DEFAULT 0
		)`,
		`INSERT INTO handle (ROWID, id, service) VALUES (1, '+15550001', 'SMS'), (3, '+15550003', 'iMessage')`,
		`INSERT INTO message (guid, text, handle_id, date, is_from_me) VALUES
			('g1', 'see you at noon', 3, 721692800000000000, 0),
			('g2', 'on my way', 1, 721692860000000000, 1),
			('g3', 'who is this', 9, 721692920000000000, 0)`,
	}
}

// WhatsAppStatements creates a msgstore.db shaped database where messages
// reference their conversation through chat and jid.
func WhatsAppStatements() []string {
	return []string{
		`CREATE TABLE jid (_id INTEGER PRIMARY KEY, user TEXT, server TEXT, raw_string TEXT)`,
		`CREATE TABLE chat (_id INTEGER PRIMARY KEY, jid_row_id INTEGER UNIQUE, subject TEXT)`,
		`CREATE TABLE message (
			_id INTEGER PRIMARY KEY,
			chat_row_id INTEGER,
			from_me INTEGER,
			key_id TEXT,
			timestamp INTEGER,
			text_data TEXT
		)`,
		`INSERT INTO jid VALUES (7, '15550007', 's.whatsapp.net', '15550007@s.whatsapp.net')`,
		`INSERT INTO chat VALUES (2, 7, NULL)`,
		`INSERT INTO message VALUES (1, 2, 0, 'k1', 1700000000000, 'ping')`,
		`INSERT INTO message VALUES (2, 2, 1, 'k2', 1700000060000, 'pong')`,
	}
}

// CallsXML is a call log backup with two calls distinct from CallLogStatements.
const CallsXML = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<calls count="2">
  <call number="+15550000004" duration="30" date="1700000300000" type="1" readable_date="Nov 14, 2023" contact_name="(Unknown)" />
  <call number="+15550000005" duration="45" date="1700000400000" type="2" readable_date="Nov 14, 2023" contact_name="Eve" />
</calls>
`
