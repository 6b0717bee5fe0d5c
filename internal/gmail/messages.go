package gmail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/triage"
)

var metadataHeaders = []string{"From", "Subject", "Date"}

// ListMessageIDs returns the ids of every message matching query, in the
// order Gmail lists them (newest first). Each page is retried on rate-limit
// and server errors.
func (c *Client) ListMessageIDs(ctx context.Context, query string) ([]string, error) {
	var ids []string
	pageToken := ""

	for page := 1; ; page++ {
		res, err := backoff.Retry(ctx, func() (*gmail.ListMessagesResponse, error) {
			var res *gmail.ListMessagesResponse
			err := c.call(ctx, instrumentation.OperationListMessages, func(ctx context.Context) error {
				req := c.svc.Messages.List(me).
					Q(query).
					MaxResults(c.cfg.PageSize).
					Fields("messages/id", "nextPageToken")
				if pageToken != "" {
					req = req.PageToken(pageToken)
				}
				var err error
				res, err = req.Context(ctx).Do()
				return err
			})
			return res, retryable(err)
		}, c.retryOptions(page)...)
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			return ids, nil
		}
		pageToken = res.NextPageToken
	}
}

func (c *Client) retryOptions(page int) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	b.MaxInterval = 30 * time.Second

	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.cfg.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("retrying message list page",
				"page", page,
				"retry_in", next,
				logging.Err(err))
		}),
	}
}

// FetchDetails returns the metadata of ids, keyed by id. Ids are fetched in
// rounds of the configured batch size with bounded fan-out inside a round.
//
// A message that cannot be fetched is logged and left out of the result.
// If nothing at all could be fetched and at least one failure was something
// other than a missing message, the last such error is returned instead.
func (c *Client) FetchDetails(ctx context.Context, ids []string) (map[string]triage.MessageDetail, error) {
	out := make(map[string]triage.MessageDetail, len(ids))
	var (
		mu      sync.Mutex
		lastErr error
	)

	for start := 0; start < len(ids); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(ids))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.FetchConcurrency)
		for _, id := range ids[start:end] {
			g.Go(func() error {
				detail, err := c.fetchDetail(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if gctx.Err() != nil {
						return nil
					}
					if !IsNotFound(err) {
						lastErr = err
					}
					c.logger.Warn("failed to fetch message details", logging.Message(id), logging.Err(err))
					return nil
				}
				out[id] = detail
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return out, err
		}
	}

	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("failed to fetch message details: %w", lastErr)
	}
	return out, nil
}

func (c *Client) fetchDetail(ctx context.Context, id string) (triage.MessageDetail, error) {
	var msg *gmail.Message
	err := c.call(ctx, instrumentation.OperationGetMessage, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(me, id).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Fields("id", "snippet", "payload/headers").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return triage.MessageDetail{}, err
	}
	if msg == nil {
		return triage.MessageDetail{}, errors.New("empty message response")
	}
	return detailFromMessage(id, msg), nil
}

func detailFromMessage(id string, m *gmail.Message) triage.MessageDetail {
	return triage.MessageDetail{
		ID:      id,
		From:    HeaderValue(m, "From"),
		Subject: HeaderValue(m, "Subject"),
		Date:    HeaderValue(m, "Date"),
		Snippet: m.Snippet,
	}
}
