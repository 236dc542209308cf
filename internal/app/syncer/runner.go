package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hickar/mailchew/internal/app/chew"
	"github.com/hickar/mailchew/internal/app/config"
	"github.com/hickar/mailchew/internal/app/mailrep"
	"github.com/hickar/mailchew/internal/app/retriever"
	"github.com/hickar/mailchew/internal/pkg/logger"
)

type Session interface {
	Select(ctx context.Context, folder string) (retriever.FolderState, error)
	FetchStructures(ctx context.Context, fromUID uint32) ([]chew.RawMessage, error)
	FetchBodyRep(ctx context.Context, uid uint32, rep *mailrep.BodyPart, req chew.FetchRequest) (chew.FetchResponse, error)
	Close() error
}

type MailRetriever interface {
	Open(context.Context, config.AccountConfig) (Session, error)
}

type MailRetrieverFunc func(context.Context, config.AccountConfig) (Session, error)

func (f MailRetrieverFunc) Open(ctx context.Context, account config.AccountConfig) (Session, error) {
	return f(ctx, account)
}

type FolderStore interface {
	Get(id string) (retriever.FolderState, bool)
	Set(id string, state retriever.FolderState)
}

type MessageStore interface {
	Set(id string, msg mailrep.Message)
	RemoveFunc(fn func(string, mailrep.Message) bool) int
	Len() int
}

type Runner struct {
	retriever MailRetriever
	chewer    *chew.Chewer
	folders   FolderStore
	messages  MessageStore
	newID     func() string
	logger    *slog.Logger
}

func NewRunner(
	mailRetriever MailRetriever,
	chewer *chew.Chewer,
	folders FolderStore,
	messages MessageStore,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		retriever: mailRetriever,
		chewer:    chewer,
		folders:   folders,
		messages:  messages,
		newID:     uuid.NewString,
		logger:    logger,
	}
}

// Run synchronizes every configured folder of the account.
//
// Folder state (UIDValidity, UIDNext) is kept in the folder store so that
// messages already seen are not assembled again on the next run.
func (r *Runner) Run(ctx context.Context, account config.AccountConfig) error {
	ctx = logger.WithAttrs(ctx, slog.String("account", account.Login))

	session, err := r.retriever.Open(ctx, account)
	if err != nil {
		r.logger.ErrorContext(ctx, "session opening failed", slog.Any("error", err))
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.WarnContext(ctx, "session closing failed", slog.Any("error", err))
		}
	}()

	for _, folder := range account.Folders {
		if err = r.syncFolder(ctx, session, account, folder); err != nil {
			return fmt.Errorf("sync folder %q: %w", folder, err)
		}
	}

	return nil
}

func (r *Runner) syncFolder(ctx context.Context, session Session, account config.AccountConfig, folder string) error {
	ctx = logger.WithAttrs(ctx, slog.String("folder", folder))
	folderID := account.Login + "/" + folder

	state, err := session.Select(ctx, folder)
	if err != nil {
		return err
	}

	fromUID := uint32(1)
	if stored, ok := r.folders.Get(folderID); ok {
		switch {
		case stored.UIDValidity != state.UIDValidity:
			removed := r.messages.RemoveFunc(func(_ string, msg mailrep.Message) bool {
				return folderOf(msg.Header.SUID) == folderID
			})
			r.logger.InfoContext(ctx, "UIDVALIDITY changed, resynchronizing folder",
				slog.Int("dropped", removed),
			)
		case state.UIDNext != 0 && stored.UIDNext >= state.UIDNext:
			r.logger.DebugContext(ctx, "no new messages")
			return nil
		default:
			fromUID = stored.UIDNext
		}
	}

	raws, err := session.FetchStructures(ctx, fromUID)
	if err != nil {
		return err
	}

	nextUID := max(state.UIDNext, fromUID)
	messages := make([]mailrep.Message, 0, len(raws))
	for _, raw := range raws {
		nextUID = max(nextUID, raw.UID+1)

		msg, err := r.chewer.ChewHeaderAndBodyStructure(raw, folderID, r.newID())
		if err != nil {
			r.logger.WarnContext(ctx, "skipping message",
				slog.Uint64("uid", uint64(raw.UID)),
				slog.Any("error", err),
			)
			continue
		}

		msg.Header.BytesToDownloadForBodyDisplay = chew.BytesToDownloadForBodyDisplay(msg.Body)
		r.messages.Set(msg.Header.ID, msg)
		messages = append(messages, msg)
	}

	r.folders.Set(folderID, retriever.FolderState{
		UIDValidity: state.UIDValidity,
		UIDNext:     nextUID,
	})
	r.logger.InfoContext(ctx, fmt.Sprintf("assembled %d new messages", len(messages)),
		slog.Int("stored", r.messages.Len()),
	)

	for _, msg := range messages {
		if err = r.downloadBodies(ctx, session, account, msg); err != nil {
			if ctx.Err() != nil {
				return err
			}

			r.logger.WarnContext(ctx, "body download failed",
				slog.String("id", msg.Header.ID),
				slog.Any("error", err),
			)
		}
		r.messages.Set(msg.Header.ID, msg)
	}

	return nil
}

// folderOf returns the folder id of a message SUID ("login/folder/id").
// Folder names may contain "/" themselves, message ids never do.
func folderOf(suid string) string {
	i := strings.LastIndex(suid, "/")
	if i < 0 {
		return ""
	}

	return suid[:i]
}

// downloadBodies fetches enough of the body to fill the snippet and, when
// configured, the complete body representations.
func (r *Runner) downloadBodies(ctx context.Context, session Session, account config.AccountConfig, msg mailrep.Message) error {
	snippetBytes := int64(account.SnippetBytes)
	if err := r.fetchBodyReps(ctx, session, msg, &snippetBytes); err != nil {
		return fmt.Errorf("snippet pass: %w", err)
	}

	if !account.DownloadBodies {
		return nil
	}

	var maxBytes *int64
	if account.MaxBodyBytes > 0 {
		limit := int64(account.MaxBodyBytes)
		maxBytes = &limit
	}

	if err := r.fetchBodyReps(ctx, session, msg, maxBytes); err != nil {
		return fmt.Errorf("body pass: %w", err)
	}

	return nil
}

func (r *Runner) fetchBodyReps(ctx context.Context, session Session, msg mailrep.Message, maxBytes *int64) error {
	defer func() {
		msg.Header.BytesToDownloadForBodyDisplay = chew.BytesToDownloadForBodyDisplay(msg.Body)
	}()

	for _, req := range chew.PlanBodyRepFetches(msg.Header, msg.Body, maxBytes) {
		rep := msg.Body.BodyReps[req.BodyRepIndex]

		res, err := session.FetchBodyRep(ctx, msg.Header.SrvID, rep, req)
		if err != nil {
			return fmt.Errorf("fetch part %s: %w", rep.Part, err)
		}

		if err = r.chewer.UpdateMessageWithFetch(msg.Header, msg.Body, req, res); err != nil {
			return fmt.Errorf("update part %s: %w", rep.Part, err)
		}

		r.logger.DebugContext(ctx, "body part fetched",
			slog.String("id", msg.Header.ID),
			slog.String("part", rep.Part),
			slog.Bool("complete", rep.IsDownloaded),
		)
	}

	return nil
}
