package retriever

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/hickar/mailchew/internal/app/bodystructure"
	"github.com/hickar/mailchew/internal/app/chew"
	"github.com/hickar/mailchew/internal/app/config"
	"github.com/hickar/mailchew/internal/app/headers"
	"github.com/hickar/mailchew/internal/app/mailrep"
	"github.com/hickar/mailchew/internal/pkg/imapdate"
)

// HeaderFields are the header fields fetched along with the body structure.
var HeaderFields = []string{
	"From", "To", "Cc", "Bcc", "Reply-To", "Subject", "Message-Id", "References",
}

type ImapDialer interface {
	DialTLS(address string, options *imapclient.Options) (*imapclient.Client, error)
}

type ImapDialerFunc func(string, *imapclient.Options) (*imapclient.Client, error)

func (f ImapDialerFunc) DialTLS(address string, options *imapclient.Options) (*imapclient.Client, error) {
	return f(address, options)
}

type imapRetriever struct {
	dialer ImapDialer
	logger *slog.Logger
}

func NewIMAPRetriever(dialer ImapDialer, logger *slog.Logger) *imapRetriever {
	return &imapRetriever{
		dialer: dialer,
		logger: logger,
	}
}

// FolderState is what SELECT tells about a folder.
type FolderState struct {
	UIDValidity uint32
	UIDNext     uint32
}

// Session is an authenticated IMAP connection.
type Session struct {
	client *imapclient.Client
	logger *slog.Logger
}

// Open connects to the account's server over TLS and logs in.
//
// imapclient commands can't be cancelled, ctx is only checked between them.
func (r *imapRetriever) Open(ctx context.Context, cfg config.AccountConfig) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := r.dialer.DialTLS(cfg.Address, &imapclient.Options{
		UnilateralDataHandler: &imapclient.UnilateralDataHandler{},
		WordDecoder:           headers.WordDecoder,
	})
	if err != nil {
		return nil, fmt.Errorf("dial TLS: %w", err)
	}

	if err = client.Login(cfg.Login, cfg.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("login: %w", err)
	}

	return &Session{client: client, logger: r.logger}, nil
}

func (s *Session) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logout: %w", err)
	}

	return s.client.Close()
}

// Select opens folder read-only.
func (s *Session) Select(ctx context.Context, folder string) (FolderState, error) {
	if err := ctx.Err(); err != nil {
		return FolderState{}, err
	}

	mailbox, err := s.client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return FolderState{}, fmt.Errorf("select: %w", err)
	}

	return FolderState{
		UIDValidity: mailbox.UIDValidity,
		UIDNext:     uint32(mailbox.UIDNext),
	}, nil
}

var errNoUID = errors.New("fetch response without UID")

// FetchStructures fetches UID, flags, internal date, body structure and
// header fields of every message with a UID of at least fromUID.
func (s *Session) FetchStructures(ctx context.Context, fromUID uint32) ([]chew.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	headerSection := &imap.FetchItemBodySection{
		Specifier:    imap.PartSpecifierHeader,
		HeaderFields: HeaderFields,
		Peek:         true,
	}
	uids := imap.UIDSet{imap.UIDRange{Start: imap.UID(fromUID)}}

	fetchCmd := s.client.Fetch(uids, &imap.FetchOptions{
		UID:           true,
		Flags:         true,
		InternalDate:  true,
		BodyStructure: &imap.FetchItemBodyStructure{Extended: true},
		BodySection:   []*imap.FetchItemBodySection{headerSection},
	})
	defer func() {
		_ = fetchCmd.Close()
	}()

	var messages []chew.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		raw, err := parseStructureMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("process message %d: %w", msg.SeqNum, err)
		}

		// "n:*" always matches the last message, even below n.
		if raw.UID < fromUID {
			continue
		}

		messages = append(messages, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return messages, nil
}

func parseStructureMessage(msg *imapclient.FetchMessageData) (chew.RawMessage, error) {
	raw := chew.RawMessage{Sections: make(map[string][]byte)}

	for {
		item := msg.Next()
		if item == nil {
			break
		}

		switch item := item.(type) {
		case imapclient.FetchItemDataUID:
			raw.UID = uint32(item.UID)

		case imapclient.FetchItemDataFlags:
			raw.Flags = make([]string, 0, len(item.Flags))
			for _, flag := range item.Flags {
				raw.Flags = append(raw.Flags, string(flag))
			}

		case imapclient.FetchItemDataInternalDate:
			// The client already parsed the date; hand the wire form on so
			// every message date goes through the same codec.
			if !item.Time.IsZero() {
				raw.InternalDate = imapdate.Format(item.Time)
			}

		case imapclient.FetchItemDataBodyStructure:
			node, err := bodystructure.FromIMAP(item.BodyStructure)
			if err != nil {
				return raw, fmt.Errorf("convert body structure: %w", err)
			}
			raw.BodyStructure = node

		case imapclient.FetchItemDataBodySection:
			if item.Literal == nil {
				continue
			}

			b, err := io.ReadAll(item.Literal)
			if err != nil {
				return raw, fmt.Errorf("read body section: %w", err)
			}
			raw.Sections[sectionName(item.Section)] = b
		}
	}

	if raw.UID == 0 {
		return raw, errNoUID
	}

	return raw, nil
}

// FetchBodyRep fetches the bytes of rep that req asks for. The raw bytes are
// appended to what earlier passes left in PartInfo.PendingBuffer and the
// whole buffer is decoded into text.
func (s *Session) FetchBodyRep(ctx context.Context, uid uint32, rep *mailrep.BodyPart, req chew.FetchRequest) (chew.FetchResponse, error) {
	if err := ctx.Err(); err != nil {
		return chew.FetchResponse{}, err
	}

	section := &imap.FetchItemBodySection{
		Part: partPath(rep.Part),
		Peek: true,
	}
	if req.Bytes != nil {
		section.Partial = &imap.SectionPartial{Offset: req.Bytes.Offset, Size: req.Bytes.Size}
	}

	fetchCmd := s.client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer func() {
		_ = fetchCmd.Close()
	}()

	msg := fetchCmd.Next()
	if msg == nil {
		return chew.FetchResponse{}, fmt.Errorf("message UID %d not found", uid)
	}

	var fetched []byte
	for {
		item := msg.Next()
		if item == nil {
			break
		}

		bodySection, ok := item.(imapclient.FetchItemDataBodySection)
		if !ok || bodySection.Literal == nil {
			continue
		}

		b, err := io.ReadAll(bodySection.Literal)
		if err != nil {
			return chew.FetchResponse{}, fmt.Errorf("read body section: %w", err)
		}
		fetched = b
	}

	if err := fetchCmd.Close(); err != nil {
		return chew.FetchResponse{}, fmt.Errorf("fetch: %w", err)
	}

	return buildFetchResponse(rep, req, fetched, s.logger), nil
}

func buildFetchResponse(rep *mailrep.BodyPart, req chew.FetchRequest, fetched []byte, logger *slog.Logger) chew.FetchResponse {
	var (
		encoding string
		params   map[string]string
		buffer   []byte
	)
	if rep.PartInfo != nil {
		encoding = rep.PartInfo.Encoding
		params = rep.PartInfo.Params
		buffer = append(buffer, rep.PartInfo.PendingBuffer...)
	}
	buffer = append(buffer, fetched...)

	res := chew.FetchResponse{
		Buffer:       buffer,
		BytesFetched: int64(len(fetched)),
	}
	if req.Bytes != nil {
		res.BytesRequested = req.Bytes.Size
	}

	complete := req.Bytes == nil || res.BytesFetched < req.Bytes.Size

	text, err := DecodeBodyText(buffer, encoding, params["charset"], complete)
	if err != nil {
		logger.Warn("body decoding failed, using raw bytes",
			slog.String("part", rep.Part),
			slog.String("encoding", encoding),
			slog.Any("error", err),
		)
		text = string(buffer)
	}
	res.Text = text

	return res
}

// sectionName renders a section the way it is named in a FETCH response,
// lowercased, e.g. "body[header.fields (from to)]".
func sectionName(section *imap.FetchItemBodySection) string {
	if section == nil {
		return "body[]"
	}

	var sb strings.Builder
	sb.WriteString("body[")

	parts := make([]string, 0, len(section.Part))
	for _, p := range section.Part {
		parts = append(parts, strconv.Itoa(p))
	}
	sb.WriteString(strings.Join(parts, "."))

	if section.Specifier != imap.PartSpecifierNone {
		if len(parts) > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(strings.ToLower(string(section.Specifier)))
	}

	if len(section.HeaderFields) > 0 {
		sb.WriteString(".fields (")
		sb.WriteString(strings.ToLower(strings.Join(section.HeaderFields, " ")))
		sb.WriteString(")")
	}

	sb.WriteString("]")
	return sb.String()
}

// partPath converts an IMAP section path like "1.2" into go-imap form.
func partPath(part string) []int {
	if part == "" {
		return []int{1}
	}

	fields := strings.Split(part, ".")
	path := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return []int{1}
		}
		path = append(path, n)
	}

	return path
}
