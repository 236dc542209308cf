package retriever

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset" // sets message.CharsetReader
)

// DecodeBodyText decodes raw body bytes according to the part's transfer
// encoding and charset. When complete is false the buffer may end mid
// encoding unit, so only the part up to the last whole unit is decoded.
func DecodeBodyText(raw []byte, encoding, charsetName string, complete bool) (string, error) {
	if !complete {
		raw = trimToWholeUnits(raw, encoding)
	}

	var h message.Header
	if encoding != "" {
		h.Set("Content-Transfer-Encoding", encoding)
	}
	if charsetName != "" {
		h.SetContentType("text/plain", map[string]string{"charset": charsetName})
	}

	entity, err := message.New(h, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("create entity: %w", err)
	}

	text, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", encoding, err)
	}

	return string(text), nil
}

// trimToWholeUnits drops a trailing partial base64 quantum or the
// quoted-printable text after the last line break, which may hold a cut
// "=XX" escape.
func trimToWholeUnits(raw []byte, encoding string) []byte {
	switch strings.ToLower(encoding) {
	case "base64":
		var n, end int
		for i, b := range raw {
			switch b {
			case ' ', '\t', '\r', '\n':
				continue
			}

			n++
			if n%4 == 0 {
				end = i + 1
			}
		}
		return raw[:end]

	case "quoted-printable":
		if i := bytes.LastIndexByte(raw, '\n'); i >= 0 {
			return raw[:i+1]
		}
		return nil
	}

	return raw
}
