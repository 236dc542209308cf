package chew

import (
	"fmt"

	"github.com/hickar/mailchew/internal/app/mailrep"
)

const (
	// MaxFetchBytes is the largest byte count a single request may ask for.
	MaxFetchBytes = 1<<32 - 1

	// minFetchBytes is requested when the size estimate is zero, since a
	// partial fetch must ask for at least one byte.
	minFetchBytes = 64

	// overfetchFactor compensates for unreliable size estimates: if fewer
	// bytes than requested come back the part is known to be complete.
	overfetchFactor = 5
)

// ByteRange asks for Size bytes starting at Offset. Size is a byte count,
// not an end offset.
type ByteRange struct {
	Offset int64
	Size   int64
}

// FetchRequest describes a fetch of one body representation.
type FetchRequest struct {
	BodyRepIndex  int
	Bytes         *ByteRange // nil for an unbounded fetch.
	CreateSnippet bool
}

// FetchResponse is the result of a FetchRequest.
type FetchResponse struct {
	// Text is the decoded text of everything fetched so far.
	Text string

	// Buffer is the raw data the next pass resumes from.
	Buffer []byte

	BytesFetched   int64
	BytesRequested int64
}

// UpdateMessageWithFetch folds the result of a body fetch into the records.
//
// The representation is complete once a fetch was unbounded or returned fewer
// bytes than requested. Its content is only replaced when complete, while a
// requested snippet is taken even from partial text. Calling it repeatedly
// for successive ranges of the same representation is safe: the downloaded
// amount only grows and a completed representation stays complete.
func (c *Chewer) UpdateMessageWithFetch(header *mailrep.HeaderInfo, body *mailrep.BodyInfo, req FetchRequest, res FetchResponse) error {
	if req.BodyRepIndex < 0 || req.BodyRepIndex >= len(body.BodyReps) {
		return fmt.Errorf("%w: %d of %d", ErrBodyRepIndex, req.BodyRepIndex, len(body.BodyReps))
	}

	bodyRep := body.BodyReps[req.BodyRepIndex]

	if req.Bytes == nil || res.BytesFetched < req.Bytes.Size {
		bodyRep.IsDownloaded = true
		bodyRep.PartInfo = nil
	}

	if !bodyRep.IsDownloaded && res.Buffer != nil && bodyRep.PartInfo != nil {
		bodyRep.PartInfo.PendingBuffer = res.Buffer
	}

	if res.BytesFetched > 0 {
		bodyRep.AmountDownloaded += res.BytesFetched
	}

	data := c.processor.ProcessMessageContent(res.Text, bodyRep.Type, bodyRep.IsDownloaded, req.CreateSnippet)

	if req.CreateSnippet {
		header.Snippet = data.Snippet
	}
	if bodyRep.IsDownloaded {
		bodyRep.Content = data.Content
	}

	return nil
}

// SelectSnippetBodyRep returns the index of the body representation that
// should provide the snippet, or -1 if the header already has one or no
// representation qualifies.
func SelectSnippetBodyRep(header *mailrep.HeaderInfo, body *mailrep.BodyInfo) int {
	if header.Snippet != "" {
		return -1
	}

	for i, rep := range body.BodyReps {
		if CanBodyRepFillSnippet(rep) {
			return i
		}
	}

	return -1
}

// CanBodyRepFillSnippet reports whether a snippet can be derived from rep:
// it must exist and be plain text or html.
func CanBodyRepFillSnippet(rep *mailrep.BodyPart) bool {
	return rep != nil && (rep.Type == mailrep.BodyTypePlain || rep.Type == mailrep.BodyTypeHTML)
}

// BytesToDownloadForBodyDisplay estimates how many bytes are still needed
// before the body can be displayed: what is left of incomplete body
// representations plus related parts not stored yet. Attachments are
// downloaded on demand and not counted.
func BytesToDownloadForBodyDisplay(body *mailrep.BodyInfo) int64 {
	var bytesLeft int64

	for _, rep := range body.BodyReps {
		if !rep.IsDownloaded {
			bytesLeft += rep.SizeEstimate - rep.AmountDownloaded
		}
	}

	for _, part := range body.RelatedParts {
		if part.File == nil {
			bytesLeft += part.SizeEstimate
		}
	}

	return bytesLeft
}

// PlanBodyRepFetches builds the requests needed to download the missing body
// representations of a message. maxBytes limits the total across all
// representations; nil means everything. Representations are requested in
// order until the budget is spent.
func PlanBodyRepFetches(header *mailrep.HeaderInfo, body *mailrep.BodyInfo, maxBytes *int64) []FetchRequest {
	snippetIdx := SelectSnippetBodyRep(header, body)

	var budget int64
	if maxBytes != nil {
		budget = *maxBytes
	}

	var requests []FetchRequest
	for i, rep := range body.BodyReps {
		if rep.IsDownloaded {
			continue
		}

		bytesToFetch := min(rep.SizeEstimate*overfetchFactor, MaxFetchBytes)

		if maxBytes != nil {
			if budget <= 0 {
				break
			}
			if rep.SizeEstimate > budget {
				bytesToFetch = budget
			}
			budget -= rep.SizeEstimate
		}

		if bytesToFetch <= 0 {
			bytesToFetch = minFetchBytes
		}

		req := FetchRequest{
			BodyRepIndex:  i,
			CreateSnippet: i == snippetIdx,
		}
		if maxBytes != nil || rep.AmountDownloaded > 0 {
			req.Bytes = &ByteRange{Offset: rep.AmountDownloaded, Size: bytesToFetch}
		}

		requests = append(requests, req)
	}

	return requests
}
