package backend

import (
	"context"

	"github.com/vrsandeep/seo-batch/internal/models"
)

// ProcessSubmitter sends each work item to /process.
type ProcessSubmitter struct {
	Client *Client
}

func (s ProcessSubmitter) Submit(ctx context.Context, item models.WorkItem, sessionID string) (*models.ResultPayload, error) {
	return s.Client.Process(ctx, ProcessRequestFromItem(item, sessionID))
}

// GenerateSubmitter sends each work item to /generate and presents the
// envelope as a meta-generation result. Brand and business type come from
// the item.
type GenerateSubmitter struct {
	Client *Client
}

func (s GenerateSubmitter) Submit(ctx context.Context, item models.WorkItem, sessionID string) (*models.ResultPayload, error) {
	resp, err := s.Client.Generate(ctx, GenerateRequest{
		URL:            item.URL,
		Topic:          item.Topic,
		Keyword:        item.Keyword,
		Language:       string(item.Language),
		Brand:          item.Brand,
		BusinessType:   item.BusinessType,
		TargetAudience: item.TargetAudience,
		SessionID:      sessionID,
	})
	if err != nil {
		return nil, err
	}
	payload := &models.ResultPayload{
		TaskType: TaskMetaGeneration,
		Status:   models.StatusCompleted,
	}
	if resp.MetaTags != nil {
		payload.MetaTags = *resp.MetaTags
	}
	if resp.Content != nil {
		payload.Content = *resp.Content
	}
	return payload, nil
}

// TaskMetaGeneration is the task_type reported for /generate results.
const TaskMetaGeneration = "meta_generation"
