// Package bodystructure models the MIME tree an IMAP server reports in a
// BODYSTRUCTURE response.
package bodystructure

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// ErrMalformed is returned when a server-provided tree cannot be converted.
var ErrMalformed = errors.New("malformed body structure")

// Node is a single MIME entity. Multipart nodes carry Children and only
// Type/Subtype/Part are meaningful for them; leaf nodes never have Children.
type Node struct {
	Type    string // Lowercased top-level media type, e.g. "text".
	Subtype string // Lowercased subtype, e.g. "html".

	// Params and DispositionParams have lowercased keys. RFC 2231 extended
	// values are kept under their "name*"/"filename*" keys, undecoded.
	Params            map[string]string
	DispositionParams map[string]string

	// Disposition is lowercased, empty when the server sent none.
	Disposition string

	ID       string // Content-Id as sent, possibly angle-bracketed.
	Part     string // IMAP section path used to fetch this part later.
	Encoding string // Lowercased Content-Transfer-Encoding.
	Size     int64  // Encoded size in bytes.

	Children []*Node
}

func (n *Node) IsMultipart() bool {
	return n.Type == "multipart"
}

func (n *Node) MediaType() string {
	return n.Type + "/" + n.Subtype
}

// FromIMAP converts a go-imap body structure into a Node tree, assigning
// section paths the way the server numbers them: the children of the root
// multipart are "1", "2", ..., nested children "2.1" and so on. A message
// that is not multipart consists of the single part "1".
func FromIMAP(bs imap.BodyStructure) (*Node, error) {
	if bs == nil {
		return nil, fmt.Errorf("%w: empty body structure", ErrMalformed)
	}

	if _, ok := bs.(*imap.BodyStructureMultiPart); ok {
		return convert(bs, "")
	}

	return convert(bs, "1")
}

func convert(bs imap.BodyStructure, path string) (*Node, error) {
	switch v := bs.(type) {
	case *imap.BodyStructureSinglePart:
		return convertSinglePart(v, path), nil

	case *imap.BodyStructureMultiPart:
		if len(v.Children) == 0 {
			return nil, fmt.Errorf("%w: multipart/%s at %q has no children", ErrMalformed, v.Subtype, path)
		}

		node := &Node{
			Type:     "multipart",
			Subtype:  strings.ToLower(v.Subtype),
			Part:     path,
			Children: make([]*Node, 0, len(v.Children)),
		}

		for i, child := range v.Children {
			if child == nil {
				return nil, fmt.Errorf("%w: nil child %d of multipart/%s", ErrMalformed, i+1, v.Subtype)
			}

			childNode, err := convert(child, childPath(path, i+1))
			if err != nil {
				return nil, err
			}

			node.Children = append(node.Children, childNode)
		}

		return node, nil

	default:
		return nil, fmt.Errorf("%w: unexpected node type %T", ErrMalformed, bs)
	}
}

func convertSinglePart(part *imap.BodyStructureSinglePart, path string) *Node {
	node := &Node{
		Type:     strings.ToLower(part.Type),
		Subtype:  strings.ToLower(part.Subtype),
		Params:   lowerKeys(part.Params),
		ID:       part.ID,
		Part:     path,
		Encoding: strings.ToLower(part.Encoding),
		Size:     int64(part.Size),
	}

	if part.Extended != nil && part.Extended.Disposition != nil {
		node.Disposition = strings.ToLower(part.Extended.Disposition.Value)
		node.DispositionParams = lowerKeys(part.Extended.Disposition.Params)
	}

	return node
}

func childPath(parent string, idx int) string {
	if parent == "" {
		return strconv.Itoa(idx)
	}

	return parent + "." + strconv.Itoa(idx)
}

func lowerKeys(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}

	out := make(map[string]string, len(params))
	for k, v := range params {
		out[strings.ToLower(k)] = v
	}

	return out
}
