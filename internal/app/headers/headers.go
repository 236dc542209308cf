// Package headers tokenizes the header-fields blob returned for a
// BODY[HEADER.FIELDS (...)] fetch.
package headers

import (
	"bufio"
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"golang.org/x/text/encoding/charmap"

	"github.com/hickar/mailchew/internal/app/mailrep"
)

func init() {
	// Charsets commonly seen in the wild that go-message doesn't know about.
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
}

// Value is the envelope every decoded field value is wrapped in.
type Value struct {
	Value any
}

// Fields maps a lowercased field name to every occurrence of that field.
type Fields map[string][]any

// First returns the first occurrence of the named field or nil.
func (f Fields) First(name string) any {
	values := f[strings.ToLower(name)]
	if len(values) == 0 {
		return nil
	}

	return values[0]
}

// addressFields are decoded into address lists, everything else into text.
var addressFields = map[string]bool{
	"from":     true,
	"to":       true,
	"cc":       true,
	"bcc":      true,
	"reply-to": true,
	"sender":   true,
}

// rawFields keep their raw value, message ids are not MIME-word encoded.
var rawFields = map[string]bool{
	"message-id":  true,
	"references":  true,
	"in-reply-to": true,
}

// WordDecoder decodes RFC 2047 encoded words using go-message charsets.
var WordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ParseHeaderFields parses a raw header blob into Fields.
func (p *Parser) ParseHeaderFields(blob []byte) (Fields, error) {
	// The blob may or may not end with the empty line that terminates
	// a header section.
	raw := make([]byte, 0, len(blob)+4)
	raw = append(raw, bytes.TrimRight(blob, "\r\n")...)
	raw = append(raw, "\r\n\r\n"...)

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	fields := make(Fields)

	mh := message.Header{Header: h}
	fieldsIter := mh.Fields()
	for fieldsIter.Next() {
		key := strings.ToLower(fieldsIter.Key())

		var value any
		switch {
		case addressFields[key]:
			value = addressValue(fieldsIter.Value())
		case rawFields[key]:
			value = strings.TrimSpace(fieldsIter.Value())
		default:
			text, err := fieldsIter.Text()
			if err != nil {
				text = fieldsIter.Value()
			}
			value = text
		}

		fields[key] = append(fields[key], Value{Value: value})
	}

	return fields, nil
}

func addressValue(raw string) any {
	list, err := mail.ParseAddressList(raw)
	if err != nil {
		return nil
	}

	addrs := make([]any, 0, len(list))
	for _, addr := range list {
		addrs = append(addrs, Value{Value: mailrep.Address{
			Name:    addr.Name,
			Address: addr.Address,
		}})
	}

	return addrs
}
