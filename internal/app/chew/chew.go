// Package chew turns IMAP body structures and header fields into message
// records and folds fetched body bytes into them.
package chew

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hickar/mailchew/internal/app/bodystructure"
	"github.com/hickar/mailchew/internal/app/headers"
	"github.com/hickar/mailchew/internal/app/mailrep"
	"github.com/hickar/mailchew/internal/pkg/imapdate"
)

// ErrBodyRepIndex is returned for fetch results that name a body
// representation the message doesn't have.
var ErrBodyRepIndex = errors.New("body rep index out of range")

type HeaderParser interface {
	ParseHeaderFields(blob []byte) (headers.Fields, error)
}

// Content is what a ContentProcessor makes of fetched body text.
type Content struct {
	Content string
	Snippet string
}

// ContentProcessor sanitizes raw body text and derives a snippet from it.
type ContentProcessor interface {
	ProcessMessageContent(text, repType string, isDownloaded, createSnippet bool) Content
}

// RawMessage is a single message as delivered by the fetch pipeline.
type RawMessage struct {
	UID   uint32
	Flags []string

	// InternalDate is the IMAP date-time text, empty when not fetched.
	InternalDate string

	BodyStructure *bodystructure.Node

	// Sections holds fetched body sections keyed by their section name,
	// e.g. "body[header.fields (from to subject)]".
	Sections map[string][]byte
}

// HeaderFieldsSection returns the header fields blob. Its key depends on
// which fields were requested, so it is found by substring match.
func (m RawMessage) HeaderFieldsSection() ([]byte, bool) {
	keys := make([]string, 0, len(m.Sections))
	for key := range m.Sections {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.Contains(strings.ToLower(key), "header.fields") {
			return m.Sections[key], true
		}
	}

	return nil, false
}

type Chewer struct {
	headerParser HeaderParser
	processor    ContentProcessor
	logger       *slog.Logger
}

func NewChewer(headerParser HeaderParser, processor ContentProcessor, logger *slog.Logger) *Chewer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Chewer{
		headerParser: headerParser,
		processor:    processor,
		logger:       logger,
	}
}

// ChewHeaderAndBodyStructure builds the header and body records of a freshly
// synced message. newMsgID is the locally assigned id of the message.
func (c *Chewer) ChewHeaderAndBodyStructure(msg RawMessage, folderID, newMsgID string) (mailrep.Message, error) {
	parts := ChewStructure(msg.BodyStructure, c.logger.With(slog.Uint64("uid", uint64(msg.UID))))

	var err error
	var fields headers.Fields
	if blob, ok := msg.HeaderFieldsSection(); ok {
		fields, err = c.headerParser.ParseHeaderFields(blob)
		if err != nil {
			return mailrep.Message{}, fmt.Errorf("parse header fields: %w", err)
		}
	}

	header := &mailrep.HeaderInfo{
		ID:             newMsgID,
		SrvID:          msg.UID,
		SUID:           folderID + "/" + newMsgID,
		GUID:           stripArrows(stringValue(ValuesOnly(fields.First("message-id")))),
		Author:         mailrep.MissingAuthor,
		To:             addressList(ValuesOnly(fields.First("to"))),
		CC:             addressList(ValuesOnly(fields.First("cc"))),
		BCC:            addressList(ValuesOnly(fields.First("bcc"))),
		ReplyTo:        addressList(ValuesOnly(fields.First("reply-to"))),
		Flags:          msg.Flags,
		Subject:        stringValue(ValuesOnly(fields.First("subject"))),
		HasAttachments: len(parts.Attachments) > 0,
	}
	if header.Flags == nil {
		header.Flags = []string{}
	}
	if from := addressList(ValuesOnly(fields.First("from"))); len(from) > 0 {
		header.Author = from[0]
	}

	if msg.InternalDate != "" {
		header.Date, err = imapdate.Parse(msg.InternalDate)
		if err != nil {
			return mailrep.Message{}, fmt.Errorf("parse internal date: %w", err)
		}
	}

	body := &mailrep.BodyInfo{
		Date:         header.Date,
		Size:         0,
		Attachments:  parts.Attachments,
		RelatedParts: parts.RelatedParts,
		References:   referenceList(stringValue(ValuesOnly(fields.First("references")))),
		BodyReps:     parts.BodyReps,
	}

	return mailrep.Message{Header: header, Body: body}, nil
}

// ValuesOnly strips the {Value: ...} envelopes the wire client wraps
// values in, recursively. Nil stays nil.
func ValuesOnly(item any) any {
	switch v := item.(type) {
	case nil:
		return nil
	case headers.Value:
		return ValuesOnly(v.Value)
	case *headers.Value:
		if v == nil {
			return nil
		}
		return ValuesOnly(v.Value)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = ValuesOnly(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = ValuesOnly(elem)
		}
		return out
	default:
		return v
	}
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		if len(s) > 0 {
			return stringValue(s[0])
		}
	}

	return ""
}

func addressList(v any) []mailrep.Address {
	switch list := v.(type) {
	case []mailrep.Address:
		return list
	case mailrep.Address:
		return []mailrep.Address{list}
	case []any:
		addrs := make([]mailrep.Address, 0, len(list))
		for _, elem := range list {
			if addr, ok := elem.(mailrep.Address); ok {
				addrs = append(addrs, addr)
			}
		}
		return addrs
	}

	return nil
}

func referenceList(s string) []string {
	ids := strings.Fields(s)
	if len(ids) == 0 {
		return nil
	}

	for i, id := range ids {
		ids[i] = stripArrows(id)
	}

	return ids
}
