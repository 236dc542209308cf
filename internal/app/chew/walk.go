package chew

import (
	"log/slog"
	"maps"
	"strconv"
	"strings"

	"github.com/hickar/mailchew/internal/app/bodystructure"
	"github.com/hickar/mailchew/internal/app/mailrep"
)

// Parts is what a body structure tree breaks down into.
type Parts struct {
	BodyReps     []*mailrep.BodyPart
	Attachments  []*mailrep.AttachmentPart
	RelatedParts []*mailrep.AttachmentPart
}

func (p *Parts) append(other Parts) {
	p.BodyReps = append(p.BodyReps, other.BodyReps...)
	p.Attachments = append(p.Attachments, other.Attachments...)
	p.RelatedParts = append(p.RelatedParts, other.RelatedParts...)
}

// ChewStructure walks a body structure tree depth-first and sorts its leaves
// into body representations, attachments and related parts.
//
// multipart/alternative keeps exactly one candidate, scanning from the last
// child since richer renderings come last. A text/plain or text/html child is
// accepted as classified, even when its disposition makes it an attachment.
// A nested multipart is accepted when it yields at least one body
// representation. Rejected candidates contribute nothing. multipart/mixed, signed and related keep all children. Any other
// multipart subtype is logged and dropped.
func ChewStructure(root *bodystructure.Node, logger *slog.Logger) Parts {
	if root == nil {
		return Parts{}
	}

	w := &walker{logger: logger}
	return w.chewNode(root, "")
}

// walker carries the counter used to name unnamed attachments.
type walker struct {
	logger  *slog.Logger
	unnamed int
}

func (w *walker) chewNode(n *bodystructure.Node, parentSubtype string) Parts {
	if !n.IsMultipart() {
		return w.chewLeaf(n, parentSubtype)
	}

	switch n.Subtype {
	case "alternative":
		return w.chewAlternative(n)

	case "mixed", "signed", "related":
		var parts Parts
		for _, child := range n.Children {
			parts.append(w.chewNode(child, n.Subtype))
		}
		return parts

	default:
		if w.logger != nil {
			w.logger.Warn("ignoring multipart type",
				slog.String("subtype", n.Subtype),
				slog.String("part", n.Part),
			)
		}
		return Parts{}
	}
}

func (w *walker) chewAlternative(n *bodystructure.Node) Parts {
	for i := len(n.Children) - 1; i >= 0; i-- {
		child := n.Children[i]
		if child.Type != "text" && !child.IsMultipart() {
			continue
		}

		// Unnamed attachments of a rejected candidate must not leave gaps
		// in the numbering.
		unnamed := w.unnamed

		parts := w.chewNode(child, n.Subtype)
		if child.IsMultipart() {
			if len(parts.BodyReps) > 0 {
				return parts
			}
		} else if child.Subtype == "plain" || child.Subtype == "html" {
			return parts
		}

		w.unnamed = unnamed
	}

	return Parts{}
}

func (w *walker) chewLeaf(n *bodystructure.Node, parentSubtype string) Parts {
	c := ClassifyPart(n, parentSubtype)

	var parts Parts
	switch c.Outcome {
	case OutcomeAttachment:
		parts.Attachments = append(parts.Attachments, w.makeAttachmentPart(n, c))
	case OutcomeRelated:
		parts.RelatedParts = append(parts.RelatedParts, w.makeAttachmentPart(n, c))
	case OutcomeBody:
		parts.BodyReps = append(parts.BodyReps, makeBodyPart(n))
	}

	// OutcomeDiscard: signatures, and inline parts we can't render yet
	// (calendar invites and such).
	return parts
}

func (w *walker) makeAttachmentPart(n *bodystructure.Node, c Classification) *mailrep.AttachmentPart {
	name := c.Filename
	if name == "" {
		w.unnamed++
		name = "unnamed-" + strconv.Itoa(w.unnamed)
	}

	return &mailrep.AttachmentPart{
		Name:         name,
		ContentID:    stripArrows(n.ID),
		Type:         strings.ToLower(n.MediaType()),
		Part:         n.Part,
		Encoding:     n.Encoding,
		SizeEstimate: c.SizeEstimate,
	}
}

func makeBodyPart(n *bodystructure.Node) *mailrep.BodyPart {
	part := n.Part
	if part == "" {
		part = "1"
	}

	rep := &mailrep.BodyPart{
		Type: n.Subtype,
		Part: part,
		// Declared sizes are unreliable, only an empty body is known to be
		// complete up front.
		SizeEstimate: n.Size,
		IsDownloaded: n.Size == 0,
	}

	if n.Size != 0 {
		rep.PartInfo = &mailrep.PartInfo{
			PartID:   n.Part,
			Type:     n.Type,
			Subtype:  n.Subtype,
			Params:   maps.Clone(n.Params),
			Encoding: n.Encoding,
		}
	}

	return rep
}

// stripArrows removes surrounding angle brackets.
func stripArrows(s string) string {
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s[1 : len(s)-1]
	}

	return s
}
