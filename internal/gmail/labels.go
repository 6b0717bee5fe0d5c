package gmail

import (
	"context"
	"fmt"
	"net/http"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
)

// maxBatchModify is the largest id list messages.batchModify accepts.
const maxBatchModify = 1000

// EnsureLabels creates every label in names that does not exist yet and
// remembers the ids of all of them for LabelID.
func (c *Client) EnsureLabels(ctx context.Context, names ...string) error {
	existing, err := c.listLabels(ctx)
	if err != nil {
		return err
	}

	for _, name := range names {
		if id, ok := existing[name]; ok {
			c.rememberLabel(name, id)
			continue
		}

		id, err := c.createLabel(ctx, name)
		switch {
		case apiErrorCode(err) == http.StatusConflict:
			// Created concurrently by another client; look it up again.
			existing, err = c.listLabels(ctx)
			if err != nil {
				return err
			}
			var ok bool
			if id, ok = existing[name]; !ok {
				return fmt.Errorf("label %q reported as existing but not listed", name)
			}
		case err != nil:
			return fmt.Errorf("failed to create label %q: %w", name, err)
		default:
			c.logger.Info("created label", logging.Label(name))
		}
		c.rememberLabel(name, id)
	}
	return nil
}

// LabelID returns the id of a label previously passed to EnsureLabels.
func (c *Client) LabelID(name string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.labelIDs[name]
	if !ok {
		return "", fmt.Errorf("label %q is unknown; EnsureLabels has not created it", name)
	}
	return id, nil
}

func (c *Client) rememberLabel(name, id string) {
	c.mu.Lock()
	c.labelIDs[name] = id
	c.mu.Unlock()
}

func (c *Client) listLabels(ctx context.Context) (map[string]string, error) {
	var res *gmail.ListLabelsResponse
	err := c.call(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		var err error
		res, err = c.svc.Labels.List(me).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}

	byName := make(map[string]string, len(res.Labels))
	for _, l := range res.Labels {
		byName[l.Name] = l.Id
	}
	return byName, nil
}

func (c *Client) createLabel(ctx context.Context, name string) (string, error) {
	var created *gmail.Label
	err := c.call(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		created, err = c.svc.Labels.Create(me, &gmail.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

// ApplyLabel adds labelID to every message in ids. Ids are sent in
// batchModify calls; when a batch fails its messages are modified one by one
// and individual failures are logged and skipped. Only cancellation of ctx
// is reported as an error.
func (c *Client) ApplyLabel(ctx context.Context, ids []string, labelID string) error {
	for start := 0; start < len(ids); start += maxBatchModify {
		chunk := ids[start:min(start+maxBatchModify, len(ids))]

		err := c.call(ctx, instrumentation.OperationBatchModify, func(ctx context.Context) error {
			return c.svc.Messages.BatchModify(me, &gmail.BatchModifyMessagesRequest{
				Ids:         chunk,
				AddLabelIds: []string{labelID},
			}).Context(ctx).Do()
		})
		if err == nil {
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		c.logger.Warn("batch label apply failed, falling back to single messages",
			logging.Count(len(chunk)), logging.Err(err))
		for _, id := range chunk {
			if err := c.modifyOne(ctx, id, labelID); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Warn("failed to label message", logging.Message(id), logging.Err(err))
			}
		}
	}
	return nil
}

func (c *Client) modifyOne(ctx context.Context, id, labelID string) error {
	return c.call(ctx, instrumentation.OperationModifyMessage, func(ctx context.Context) error {
		_, err := c.svc.Messages.Modify(me, id, &gmail.ModifyMessageRequest{
			AddLabelIds: []string{labelID},
		}).Context(ctx).Do()
		return err
	})
}
