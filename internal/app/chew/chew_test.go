package chew

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hickar/mailchew/internal/app/headers"
	"github.com/hickar/mailchew/internal/app/mailrep"
	"github.com/hickar/mailchew/internal/pkg/imapdate"
)

type stubHeaderParser struct {
	fields headers.Fields
	err    error
	blob   []byte
}

func (p *stubHeaderParser) ParseHeaderFields(blob []byte) (headers.Fields, error) {
	p.blob = blob
	return p.fields, p.err
}

func TestValuesOnly(t *testing.T) {
	assert.Nil(t, ValuesOnly(nil))
	assert.Nil(t, ValuesOnly((*headers.Value)(nil)))
	assert.Equal(t, 1, ValuesOnly(headers.Value{Value: 1}))
	assert.Equal(t, "x", ValuesOnly(&headers.Value{Value: headers.Value{Value: "x"}}))
	assert.Equal(t, []any{1, "a", nil}, ValuesOnly([]any{headers.Value{Value: 1}, "a", nil}))
	assert.Equal(t,
		map[string]any{"k": []any{2}, "n": nil},
		ValuesOnly(map[string]any{"k": headers.Value{Value: []any{headers.Value{Value: 2}}}, "n": nil}),
	)
}

func TestHeaderFieldsSection(t *testing.T) {
	msg := RawMessage{Sections: map[string][]byte{
		"body[1]": []byte("nope"),
		"BODY[HEADER.FIELDS (FROM TO)]": []byte("From: a@b"),
	}}

	blob, ok := msg.HeaderFieldsSection()
	require.True(t, ok)
	assert.Equal(t, []byte("From: a@b"), blob)

	_, ok = RawMessage{}.HeaderFieldsSection()
	assert.False(t, ok)
}

func TestChewHeaderAndBodyStructure(t *testing.T) {
	pdf := leaf("application/pdf", "2", 4000)
	pdf.Params = map[string]string{"name": "report.pdf"}
	pdf.Disposition = "attachment"

	parser := &stubHeaderParser{fields: headers.Fields{
		"from": {headers.Value{Value: []any{
			headers.Value{Value: mailrep.Address{Name: "Ann", Address: "ann@example.com"}},
			headers.Value{Value: mailrep.Address{Address: "second@example.com"}},
		}}},
		"to": {headers.Value{Value: []any{
			headers.Value{Value: mailrep.Address{Address: "bob@example.com"}},
		}}},
		"subject":    {headers.Value{Value: "Quarterly report"}},
		"message-id": {headers.Value{Value: "<m1@example.com>"}},
		"references": {headers.Value{Value: "<r1@example.com>  <r2@example.com>\r\n <r3@example.com>"}},
	}}

	chewer := NewChewer(parser, nil, nil)
	msg, err := chewer.ChewHeaderAndBodyStructure(RawMessage{
		UID:          42,
		Flags:        []string{`\Seen`},
		InternalDate: "17-Jul-1996 02:44:25 -0700",
		BodyStructure: multipart("mixed",
			multipart("alternative", leaf("text/plain", "1.1", 50), leaf("text/html", "1.2", 80)),
			pdf,
		),
		Sections: map[string][]byte{"body[header.fields (from to subject message-id references)]": []byte("raw")},
	}, "folder-1", "7")
	require.NoError(t, err)

	assert.Equal(t, []byte("raw"), parser.blob)

	date := time.Date(1996, time.July, 17, 9, 44, 25, 0, time.UTC)
	assert.Equal(t, &mailrep.HeaderInfo{
		ID:             "7",
		SrvID:          42,
		SUID:           "folder-1/7",
		GUID:           "m1@example.com",
		Author:         mailrep.Address{Name: "Ann", Address: "ann@example.com"},
		To:             []mailrep.Address{{Address: "bob@example.com"}},
		Date:           date,
		Flags:          []string{`\Seen`},
		Subject:        "Quarterly report",
		HasAttachments: true,
	}, msg.Header)

	assert.True(t, date.Equal(msg.Body.Date))
	assert.Equal(t, int64(0), msg.Body.Size)
	assert.Equal(t, []string{"r1@example.com", "r2@example.com", "r3@example.com"}, msg.Body.References)
	require.Len(t, msg.Body.BodyReps, 1)
	assert.Equal(t, "html", msg.Body.BodyReps[0].Type)
	require.Len(t, msg.Body.Attachments, 1)
	assert.Equal(t, "report.pdf", msg.Body.Attachments[0].Name)
	assert.Empty(t, msg.Body.RelatedParts)
}

func TestChewHeaderAndBodyStructureMissingFields(t *testing.T) {
	chewer := NewChewer(&stubHeaderParser{}, nil, nil)

	msg, err := chewer.ChewHeaderAndBodyStructure(RawMessage{
		UID:           3,
		BodyStructure: leaf("text/plain", "1", 10),
	}, "f", "1")
	require.NoError(t, err)

	assert.Equal(t, mailrep.MissingAuthor, msg.Header.Author)
	assert.Equal(t, "", msg.Header.GUID)
	assert.Equal(t, []string{}, msg.Header.Flags)
	assert.True(t, msg.Header.Date.IsZero())
	assert.False(t, msg.Header.HasAttachments)
	assert.Equal(t, "", msg.Header.Snippet)
	assert.Nil(t, msg.Header.To)
	assert.Nil(t, msg.Body.References)
}

func TestChewHeaderAndBodyStructureErrors(t *testing.T) {
	_, err := NewChewer(&stubHeaderParser{}, nil, nil).ChewHeaderAndBodyStructure(RawMessage{
		InternalDate:  "yesterday",
		BodyStructure: leaf("text/plain", "1", 10),
	}, "f", "1")
	assert.ErrorIs(t, err, imapdate.ErrMalformed)

	parseErr := errors.New("boom")
	_, err = NewChewer(&stubHeaderParser{err: parseErr}, nil, nil).ChewHeaderAndBodyStructure(RawMessage{
		BodyStructure: leaf("text/plain", "1", 10),
		Sections:      map[string][]byte{"body[header.fields (from)]": nil},
	}, "f", "1")
	assert.ErrorIs(t, err, parseErr)
}

func TestChewHeaderAndBodyStructureWithParser(t *testing.T) {
	blob := "From: \"Ann\" <ann@example.com>\r\n" +
		"Message-ID: <m2@example.com>\r\n" +
		"Subject: hello"

	chewer := NewChewer(headers.NewParser(), nil, nil)
	msg, err := chewer.ChewHeaderAndBodyStructure(RawMessage{
		BodyStructure: leaf("text/plain", "1", 10),
		Sections:      map[string][]byte{"BODY[HEADER.FIELDS (FROM MESSAGE-ID SUBJECT)]": []byte(blob)},
	}, "f", "1")
	require.NoError(t, err)

	assert.Equal(t, mailrep.Address{Name: "Ann", Address: "ann@example.com"}, msg.Header.Author)
	assert.Equal(t, "m2@example.com", msg.Header.GUID)
	assert.Equal(t, "hello", msg.Header.Subject)
}
