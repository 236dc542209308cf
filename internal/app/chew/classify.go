package chew

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hickar/mailchew/internal/app/bodystructure"
	"github.com/hickar/mailchew/internal/app/headers"
)

// Outcome says where a leaf part ends up.
type Outcome int

const (
	OutcomeDiscard Outcome = iota
	OutcomeBody
	OutcomeAttachment
	OutcomeRelated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBody:
		return "body"
	case OutcomeAttachment:
		return "attachment"
	case OutcomeRelated:
		return "related"
	default:
		return "discard"
	}
}

const (
	dispositionInline     = "inline"
	dispositionAttachment = "attachment"
)

// Classification is the verdict for one leaf part.
type Classification struct {
	Outcome      Outcome
	Disposition  string
	Filename     string // Empty when no filename could be resolved.
	SizeEstimate int64
}

// ClassifyPart decides what a leaf part contributes to the message.
// parentSubtype is the subtype of the enclosing multipart, if any.
func ClassifyPart(n *bodystructure.Node, parentSubtype string) Classification {
	c := Classification{
		Filename:     PartFilename(n),
		SizeEstimate: EstimatePartSize(n),
	}

	switch {
	case n.Disposition == dispositionInline:
		// Text is fine inline, anything else needs a content id to be
		// referenced from the html body.
		if n.Type == "text" || n.ID != "" {
			c.Disposition = dispositionInline
		} else {
			c.Disposition = dispositionAttachment
		}
	case n.Disposition == dispositionAttachment:
		c.Disposition = dispositionAttachment
	case n.Disposition != "":
		c.Disposition = dispositionInline
	case parentSubtype == "related" && n.ID != "" && n.Type == "image":
		// Images of multipart/related often come without a disposition.
		c.Disposition = dispositionInline
	case c.Filename != "" || n.Type != "text":
		c.Disposition = dispositionAttachment
	default:
		c.Disposition = dispositionInline
	}

	// Only text and images are rendered inline.
	if n.Type != "text" && n.Type != "image" {
		c.Disposition = dispositionAttachment
	}

	if n.Type == "application" && (n.Subtype == "pgp-signature" || n.Subtype == "pkcs7-signature") {
		c.Outcome = OutcomeDiscard
		return c
	}

	switch {
	case c.Disposition == dispositionAttachment:
		c.Outcome = OutcomeAttachment
	case n.Type == "image":
		c.Outcome = OutcomeRelated
	case n.Type == "text" && (n.Subtype == "plain" || n.Subtype == "html"):
		c.Outcome = OutcomeBody
	default:
		c.Outcome = OutcomeDiscard
	}

	return c
}

// EstimatePartSize estimates the decoded size of a part from its encoded
// size. A 78 character base64 line (76 + CRLF) carries 57 bytes of payload.
// Quoted-printable and unknown encodings use the encoded size as an upper
// bound.
func EstimatePartSize(n *bodystructure.Node) int64 {
	if n.Encoding == "base64" {
		return n.Size * 57 / 78
	}

	return n.Size
}

// PartFilename resolves the filename of a part. The first match wins:
// Content-Type name, its RFC 2231 form, Content-Disposition filename, and
// its RFC 2231 form.
func PartFilename(n *bodystructure.Node) string {
	if v := n.Params["name"]; v != "" {
		return decodeWords(v)
	}
	if v := n.Params["name*"]; v != "" {
		if name, ok := decodeRFC2231(v); ok {
			return name
		}
	}
	if v := n.DispositionParams["filename"]; v != "" {
		return decodeWords(v)
	}
	if v := n.DispositionParams["filename*"]; v != "" {
		if name, ok := decodeRFC2231(v); ok {
			return name
		}
	}

	return ""
}

func decodeWords(s string) string {
	decoded, err := headers.WordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}

	return decoded
}

var reRFC2231 = regexp.MustCompile(`^([^']*)'([^']*)'(.+)$`)

// q-encoding special characters that may appear literally in RFC 2231 values.
var qEscaper = strings.NewReplacer("_", "=5F", "?", "=3F", " ", "=20", "=", "=3D")

// decodeRFC2231 decodes charset'lang'percent-encoded values by rewriting
// them as a Q encoded word, e.g. utf-8''%C3%A9.txt => =?utf-8?Q?=C3=A9.txt?=.
func decodeRFC2231(s string) (string, bool) {
	m := reRFC2231.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}

	cs := m[1]
	if cs == "" {
		cs = "us-ascii"
	}

	payload := strings.ReplaceAll(qEscaper.Replace(m[3]), "%", "=")

	decoded, err := headers.WordDecoder.DecodeHeader("=?" + cs + "?Q?" + payload + "?=")
	if err != nil {
		// Unknown charset: keep the raw bytes.
		raw, err := url.PathUnescape(m[3])
		if err != nil {
			return m[3], true
		}
		return raw, true
	}

	return decoded, true
}
