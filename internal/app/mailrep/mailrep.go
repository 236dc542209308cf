// Package mailrep holds the persistable message records produced by the
// chew layer and mutated by later body fetches.
package mailrep

import (
	"time"
)

const (
	BodyTypePlain = "plain"
	BodyTypeHTML  = "html"
)

type Address struct {
	Name    string
	Address string
}

// HeaderInfo is the per-message summary record.
type HeaderInfo struct {
	ID      string   // Locally assigned message id.
	SrvID   uint32   // IMAP UID.
	SUID    string   // Folder id + "/" + ID.
	GUID    string   // Message-Id without angle brackets.
	Author  Address  // First From address or MissingAuthor.
	To      []Address
	CC      []Address
	BCC     []Address
	ReplyTo []Address
	Date    time.Time // Zero when the server sent no INTERNALDATE.
	Flags   []string
	Subject string

	HasAttachments bool

	// Snippet stays empty until a body fetch asked to create it.
	Snippet string

	// BytesToDownloadForBodyDisplay is refreshed after every body fetch.
	BytesToDownloadForBodyDisplay int64
}

// MissingAuthor stands in for messages without a From header.
var MissingAuthor = Address{Address: "missing-address@example.com"}

type BodyInfo struct {
	Date         time.Time
	Size         int64
	Attachments  []*AttachmentPart
	RelatedParts []*AttachmentPart
	References   []string // nil when the header is absent.
	BodyReps     []*BodyPart
}

// BodyPart is one displayable representation of the message body.
type BodyPart struct {
	Type             string // BodyTypePlain or BodyTypeHTML.
	Part             string
	SizeEstimate     int64
	AmountDownloaded int64
	IsDownloaded     bool
	Content          string

	// PartInfo keeps what is needed to resume fetching and decoding.
	// It is nil once IsDownloaded is set.
	PartInfo *PartInfo
}

type PartInfo struct {
	PartID   string
	Type     string
	Subtype  string
	Params   map[string]string
	Encoding string

	// PendingBuffer holds raw bytes of a byte-range fetch that were not
	// applied yet.
	PendingBuffer []byte
}

type AttachmentPart struct {
	Name         string
	ContentID    string // Empty when the part has no Content-Id.
	Type         string
	Part         string
	Encoding     string
	SizeEstimate int64

	// File is set once the attachment has been downloaded and stored.
	File *string
}

type Message struct {
	Header *HeaderInfo
	Body   *BodyInfo
}
