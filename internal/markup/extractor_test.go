package markup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/extractors"
	"github.com/custodia-labs/ingestor/internal/fixtures"
)

func newTestExtractor() *Extractor {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return New(WithDecoder(extractors.NewDecoder(extractors.WithClock(func() time.Time { return now }))))
}

func extract(t *testing.T, doc, path string) ([]domain.Record, int, error) {
	t.Helper()
	res, err := newTestExtractor().Extract(context.Background(), strings.NewReader(doc), path)
	require.NotNil(t, res)
	return res.Records, res.SkippedRows, err
}

func TestExtract_CallLogBackup(t *testing.T) {
	recs, skipped, err := extract(t, fixtures.CallsXML, "backup/calls.xml")
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, recs, 2)

	first := recs[0].Call
	require.NotNil(t, first)
	assert.Equal(t, "backup/calls.xml", first.SourceEntryPath)
	assert.Equal(t, "+15550000004", first.ParticipantIdentifier)
	assert.Equal(t, domain.DirectionIncoming, first.Direction)
	require.NotNil(t, first.DurationSeconds)
	assert.Equal(t, int64(30), *first.DurationSeconds)
	require.NotNil(t, first.TimestampUTC)
	assert.Equal(t, int64(1700000300), first.TimestampUTC.Unix())
	assert.Equal(t, "call", recs[0].SourceTable)

	assert.Equal(t, domain.DirectionOutgoing, recs[1].Call.Direction)
}

func TestExtract_SMSBackup(t *testing.T) {
	doc := `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<smses count="2" backup_set="x">
  <sms protocol="0" address="+15551234567" date="1700000000000" type="1" body="bring the stuff" read="1" />
  <mms date="1700000060000" msg_box="2" address="+15551234567">
    <parts>
      <part seq="-1" ct="application/smil" text="&lt;smil/&gt;" />
      <part seq="0" ct="text/plain" text="on my way" />
    </parts>
    <addrs>
      <addr address="+15551234567" type="151" />
    </addrs>
  </mms>
  <sms address="" body="" date="1700000000000" type="1" />
</smses>`

	recs, skipped, err := extract(t, doc, "sms.xml")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, recs, 2)

	sms := recs[0].Chat
	assert.Equal(t, "bring the stuff", sms.Body)
	assert.Equal(t, domain.DirectionIncoming, sms.Direction)
	assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), *sms.TimestampUTC)

	mms := recs[1].Chat
	assert.Equal(t, "mms", recs[1].SourceTable)
	assert.Equal(t, "on my way", mms.Body)
	assert.Equal(t, domain.DirectionOutgoing, mms.Direction)
}

func TestExtract_Malformed(t *testing.T) {
	t.Run("after records", func(t *testing.T) {
		doc := `<smses><sms address="1" body="a" date="1700000000000" type="1"/><sms address=`
		recs, _, err := extract(t, doc, "sms.xml")
		assert.ErrorIs(t, err, domain.ErrUnparseableMarkup)
		assert.Len(t, recs, 1)
	})

	t.Run("before records", func(t *testing.T) {
		doc := `<smses><sms address="1" body=`
		recs, _, err := extract(t, doc, "sms.xml")
		assert.ErrorIs(t, err, domain.ErrUnparseableMarkup)
		assert.Empty(t, recs)
	})

	t.Run("mismatched tags", func(t *testing.T) {
		_, _, err := extract(t, `<calls><call number="1"></calls>`, "calls.xml")
		assert.ErrorIs(t, err, domain.ErrUnparseableMarkup)
	})
}

func TestExtract_NotMarkup(t *testing.T) {
	recs, _, err := extract(t, "just some notes\nnothing structured here\n", "notes.txt")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Empty(t, recs)
}

func TestExtract_GenericAttributes(t *testing.T) {
	doc := `<export>
  <message from="+15551112222" text="hi there" time="1700000000" direction="in" />
  <message from="+15551112222" text="see you" time="1700000100" direction="out" />
  <item name="DeviceName">Pixel</item>
</export>`

	recs, _, err := extract(t, doc, "export.xml")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, domain.FamilyChat, r.Family)
		assert.Equal(t, "message", r.SourceTable)
	}
	assert.Equal(t, "hi there", recs[0].Chat.Body)
	assert.Equal(t, domain.DirectionIncoming, recs[0].Chat.Direction)
	assert.Equal(t, domain.DirectionOutgoing, recs[1].Chat.Direction)
}

func TestExtract_GenericLeafChildren(t *testing.T) {
	doc := `<contactList>
  <person><full_name>Ann</full_name><mobile>+15550000001</mobile></person>
  <person><full_name>Bob</full_name><mobile>+15550000002</mobile><email>bob@example.com</email></person>
</contactList>`

	recs, _, err := extract(t, doc, "contacts.xml")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Ann", recs[0].Contact.DisplayName)
	assert.Equal(t, []string{"+15550000001"}, recs[0].Contact.Identifiers)
	assert.Equal(t, "Bob", recs[1].Contact.DisplayName)
	assert.Equal(t, []string{"+15550000002", "bob@example.com"}, recs[1].Contact.Identifiers)
}

func TestExtract_UFEDModels(t *testing.T) {
	doc := `<?xml version="1.0" encoding="utf-8"?>
<project name="report">
  <decodedData>
    <modelType type="Call">
      <model type="Call" id="1">
        <field name="Direction" type="String"><value type="String">Incoming</value></field>
        <field name="TimeStamp" type="TimeStamp"><value type="TimeStamp">2023-11-14T22:13:20.000+00:00</value></field>
        <field name="Duration" type="TimeSpan"><value type="TimeSpan">00:01:05</value></field>
        <multiModelField name="Parties">
          <model type="Party" id="2">
            <field name="Identifier" type="String"><value type="String">+15550000009</value></field>
            <field name="Name" type="String"><value type="String">Zed</value></field>
          </model>
        </multiModelField>
      </model>
    </modelType>
    <modelType type="Contact">
      <model type="Contact" id="3">
        <field name="Name" type="String"><value type="String">Zed</value></field>
        <multiModelField name="Entries">
          <model type="PhoneNumber" id="4">
            <field name="Value" type="String"><value type="String">+15550000009</value></field>
          </model>
        </multiModelField>
      </model>
    </modelType>
  </decodedData>
</project>`

	recs, _, err := extract(t, doc, "report.xml")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	call := recs[0].Call
	require.NotNil(t, call)
	assert.Equal(t, "+15550000009", call.ParticipantIdentifier)
	assert.Equal(t, domain.DirectionIncoming, call.Direction)
	require.NotNil(t, call.DurationSeconds)
	assert.Equal(t, int64(65), *call.DurationSeconds)
	require.NotNil(t, call.TimestampUTC)
	assert.Equal(t, int64(1700000000), call.TimestampUTC.Unix())

	contact := recs[1].Contact
	require.NotNil(t, contact)
	assert.Equal(t, "Zed", contact.DisplayName)
	assert.Equal(t, []string{"+15550000009"}, contact.Identifiers)
}

func TestExtract_Latin1(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<smses><sms address=\"1\" body=\"caf\xe9\" date=\"1700000000000\" type=\"2\"/></smses>"

	recs, _, err := extract(t, doc, "sms.xml")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "café", recs[0].Chat.Body)
}

func TestExtract_DeclaredCharsets(t *testing.T) {
	tests := []struct {
		name  string
		label string
		body  string
		want  string
	}{
		{name: "windows-1252", label: "windows-1252", body: "cost \x805 \x93ok\x94", want: "cost €5 “ok”"},
		{name: "latin-1 label reads as windows-1252", label: "ISO-8859-1", body: "\x93caf\xe9\x94", want: "“café”"},
		{name: "cp1252 alias", label: "cp1252", body: "\x80", want: "€"},
		{name: "koi8-r", label: "KOI8-R", body: "\xf0\xd2\xc9\xd7\xc5\xd4", want: "Привет"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "<?xml version=\"1.0\" encoding=\"" + tt.label + "\"?>\n" +
				"<smses><sms address=\"1\" body=\"" + tt.body + "\" date=\"1700000000000\" type=\"2\"/></smses>"

			recs, _, err := extract(t, doc, "sms.xml")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.want, recs[0].Chat.Body)
		})
	}
}

func TestExtract_ByteOrderMark(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-16"?>
<smses count="1">
  <sms address="+15551234567" date="1700000000000" type="1" body="grüße €" />
</smses>`

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "utf-16le", encoded: encodeUTF16(t, unicode.LittleEndian, doc)},
		{name: "utf-16be", encoded: encodeUTF16(t, unicode.BigEndian, doc)},
		{name: "utf-8 with bom", encoded: "\xef\xbb\xbf" + strings.Replace(doc, "UTF-16", "UTF-8", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, _, err := extract(t, tt.encoded, "sms.xml")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "+15551234567", recs[0].Chat.ParticipantIdentifier)
			assert.Equal(t, "grüße €", recs[0].Chat.Body)
		})
	}
}

func encodeUTF16(t *testing.T, order unicode.Endianness, s string) string {
	t.Helper()
	out, err := unicode.UTF16(order, unicode.UseBOM).NewEncoder().String(s)
	require.NoError(t, err)
	return out
}

func TestExtract_UnsupportedCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"EBCDIC\"?>\n<smses/>"
	_, _, err := extract(t, doc, "sms.xml")
	assert.ErrorIs(t, err, domain.ErrUnparseableMarkup)
}

func TestExtract_HTMLLenient(t *testing.T) {
	doc := `<html><body><table>
<tr><td>x</td></tr><br>
</table></body></html>`
	recs, _, err := extract(t, doc, "report.html")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, strings.NewReader(fixtures.CallsXML), "calls.xml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParser_DecisionCached(t *testing.T) {
	p := &parser{ex: newTestExtractor(), decisions: make(map[string]*decision)}

	f := &frame{name: "entry"}
	f.add("sender", "a")
	f.add("content", "one")
	first := p.decide("entry", f)
	require.NotNil(t, first)
	assert.Equal(t, domain.FamilyChat, first.profile.Family)

	g := &frame{name: "entry"}
	g.add("content", "two")
	g.add("sender", "b")
	assert.Same(t, first, p.decide("entry", g))
	assert.Len(t, p.decisions, 1)

	h := &frame{name: "entry"}
	h.add("colour", "red")
	assert.Nil(t, p.decide("entry", h))
	assert.Len(t, p.decisions, 2)
}
