// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ernesco-mail/ernesco/internal/domain/model"
	"github.com/ernesco-mail/ernesco/internal/domain/port/driven"
)

// scanRequest represents a manual scan trigger.
type scanRequest struct {
	done chan error
}

// ScanService owns the scan-and-reply reconciliation loop: on every tick it
// loads all connected accounts, reconciles each mailbox's unread set against
// the activity log, drafts replies, and marks handled messages read.
//
// A single goroutine owns both the ticker and the manual-trigger channel, so
// timer-fired and manually-fired cycles can never overlap. Within a cycle,
// accounts are fanned out to a bounded worker pool; each account is handled by
// exactly one worker.
type ScanService struct {
	accounts  driven.AccountStore
	activity  driven.ActivityStore
	provider  driven.MailProvider
	generator driven.ReplyGenerator

	interval    time.Duration
	pageSize    int
	workers     int
	callTimeout time.Duration

	scanCh chan scanRequest
}

// NewScanService creates a ScanService with all required dependencies.
// pageSize bounds the unread page fetched per account, workers bounds
// per-cycle account concurrency, and callTimeout applies to every external
// round trip individually.
func NewScanService(
	accounts driven.AccountStore,
	activity driven.ActivityStore,
	provider driven.MailProvider,
	generator driven.ReplyGenerator,
	interval time.Duration,
	pageSize int,
	workers int,
	callTimeout time.Duration,
) *ScanService {
	return &ScanService{
		accounts:    accounts,
		activity:    activity,
		provider:    provider,
		generator:   generator,
		interval:    interval,
		pageSize:    pageSize,
		workers:     workers,
		callTimeout: callTimeout,
		scanCh:      make(chan scanRequest),
	}
}

// Start begins the scan loop. It runs an immediate cycle, then fires on the
// configured interval, and also listens for manual triggers. Start blocks
// until the context is canceled.
func (s *ScanService) Start(ctx context.Context) {
	if err := s.runCycle(ctx); err != nil {
		slog.Error("initial scan cycle failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scan service stopped")
			return
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				slog.Error("scan cycle failed", "error", err)
			}
		case req := <-s.scanCh:
			req.done <- s.runCycle(ctx)
		}
	}
}

// ScanNow triggers a full cycle, bypassing the interval. It blocks until the
// cycle completes or the context is canceled. The cycle itself runs on the
// loop goroutine, so a manual trigger can never race a timer-fired cycle.
func (s *ScanService) ScanNow(ctx context.Context) error {
	req := scanRequest{done: make(chan error, 1)}

	select {
	case s.scanCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runCycle executes one reconciliation pass over all accounts. An unreachable
// account store aborts the cycle before anything is touched; every failure
// below that level is contained to its account or message.
func (s *ScanService) runCycle(ctx context.Context) error {
	start := time.Now()

	lctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	accounts, err := s.accounts.ListAll(lctx)
	cancel()
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	var accountErrs atomic.Int64

	for _, account := range accounts {
		if ctx.Err() != nil {
			break
		}
		if !account.HasToken() {
			slog.Debug("skipping account without credential", "account", account.EmailAddress)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(account model.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.scanAccount(ctx, account); err != nil {
				accountErrs.Add(1)
				slog.Error("account scan failed", "account", account.EmailAddress, "error", err)
			}
		}(account)
	}
	wg.Wait()

	slog.Info("scan cycle complete",
		"accounts", len(accounts),
		"errors", accountErrs.Load(),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// scanAccount reconciles one mailbox. A rejected credential or a failed list
// call skips the account for this cycle without touching the others.
func (s *ScanService) scanAccount(ctx context.Context, account model.Account) error {
	// The session's transparent token refresh is bound to the context given to
	// Open, so it gets the cycle context rather than a per-call window; the
	// provider bounds its own validation call internally.
	sess, err := s.provider.Open(ctx, account)
	if err != nil {
		return err
	}

	lctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	messages, err := sess.ListUnread(lctx, s.pageSize)
	cancel()
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processMessage(ctx, sess, account, msg)
	}

	return nil
}

// processMessage handles one unread message inside its own failure domain.
// The ordering contract is: append the activity record, then attempt
// delivery, then clear the unread flag -- and the flag is only cleared after
// the reply was delivered (or recorded as a draft). A message whose
// generation or delivery failed stays unread and is retried next cycle.
func (s *ScanService) processMessage(ctx context.Context, sess driven.MailSession, account model.Account, msg model.InboxMessage) {
	fctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	detail, err := sess.Fetch(fctx, msg.ID)
	cancel()
	if err != nil {
		slog.Error("fetch message failed", "account", account.EmailAddress, "message", msg.ID, "error", err)
		return
	}
	if !detail.IsUnread {
		// Read out from under us, most likely by the user. Nothing to reconcile.
		return
	}

	actx, cancel := context.WithTimeout(ctx, s.callTimeout)
	recordID, err := s.activity.Append(actx, model.ActivityRecord{
		AccountEmail: account.EmailAddress,
		MessageID:    detail.ID,
		Subject:      detail.Subject,
		Status:       model.ActivityProcessing,
	})
	cancel()
	if err != nil {
		// Without an audit row we leave the message alone entirely.
		slog.Error("append activity record failed", "account", account.EmailAddress, "message", msg.ID, "error", err)
		return
	}

	gctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	reply, err := s.generator.Generate(gctx, BuildReplyPrompt(account, *detail))
	cancel()
	if err != nil {
		slog.Warn("reply generation failed", "account", account.EmailAddress, "message", msg.ID, "error", err)
		s.finalize(ctx, recordID, model.ActivityFailed, "", err.Error())
		return
	}

	if !account.AutoSend {
		s.finalize(ctx, recordID, model.ActivityDrafted, reply, "")
		s.markRead(ctx, sess, account, detail.ID)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	err = sess.SendReply(sctx, *detail, reply)
	cancel()
	if err != nil {
		slog.Warn("reply delivery failed", "account", account.EmailAddress, "message", msg.ID, "error", err)
		s.finalize(ctx, recordID, model.ActivityDeliveryFailed, reply, err.Error())
		return
	}

	s.finalize(ctx, recordID, model.ActivitySent, reply, "")
	s.markRead(ctx, sess, account, detail.ID)
}

// finalize moves the record to its terminal status; a failure here is logged
// and swallowed, leaving the record in processing.
func (s *ScanService) finalize(ctx context.Context, id int64, status model.ActivityStatus, reply, detail string) {
	fctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := s.activity.Finalize(fctx, id, status, reply, detail); err != nil {
		slog.Error("finalize activity record failed", "record", id, "status", string(status), "error", err)
	}
}

// markRead clears the unread flag. Losing this step after a delivered reply is
// tolerable -- the message is reprocessed next cycle -- so the error is only
// logged.
func (s *ScanService) markRead(ctx context.Context, sess driven.MailSession, account model.Account, id string) {
	mctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if err := sess.MarkRead(mctx, id); err != nil {
		slog.Error("mark read failed", "account", account.EmailAddress, "message", id, "error", err)
	}
}
