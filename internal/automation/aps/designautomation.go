package aps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"tga-backend/internal/automation"
)

type workItemArgument struct {
	URL     string            `json:"url"`
	Verb    string            `json:"verb,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type workItemRequest struct {
	ActivityID string                      `json:"activityId"`
	Arguments  map[string]workItemArgument `json:"arguments"`
}

type workItemResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Progress  string `json:"progress"`
	ReportURL string `json:"reportUrl"`
}

type workItemParams struct {
	JobID       string   `json:"jobId"`
	ProjectType string   `json:"projectType"`
	TotalArea   int      `json:"totalArea"`
	Floors      int      `json:"floors"`
	Region      string   `json:"region"`
	Disciplines []string `json:"disciplines"`
}

func (c *Client) workItemsURL() string {
	return fmt.Sprintf("%s/da/%s/v3/workitems", c.cfg.BaseURL, c.cfg.Region)
}

// Submit starts a work item that reads the uploaded drawing and writes its
// output back to the bucket under item.OutputName.
func (c *Client) Submit(ctx context.Context, item automation.WorkItem) (string, error) {
	inputURL, err := c.downloadURL(ctx, item.Input.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("input url: %w", err)
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("aps token: %w", err)
	}

	params := workItemParams{
		JobID:       item.JobID,
		ProjectType: string(item.Project.ProjectType),
		TotalArea:   item.Project.TotalArea,
		Floors:      item.Project.Floors,
		Region:      string(item.Project.Region),
	}
	for _, d := range item.Project.Disciplines {
		params.Disciplines = append(params.Disciplines, d.Code)
	}
	rawParams, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	req := workItemRequest{
		ActivityID: c.cfg.ActivityID,
		Arguments: map[string]workItemArgument{
			"inputFile": {URL: inputURL},
			"params":    {URL: "data:application/json," + url.PathEscape(string(rawParams))},
			"outputFile": {
				URL:     fmt.Sprintf("urn:adsk.objects:os.object:%s/%s", c.cfg.BucketKey, item.OutputName),
				Verb:    "put",
				Headers: map[string]string{"Authorization": "Bearer " + tok.AccessToken},
			},
		},
	}

	var resp workItemResponse
	if _, err := c.doJSON(ctx, http.MethodPost, c.workItemsURL(), req, &resp); err != nil {
		return "", fmt.Errorf("submit work item: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("submit work item: response missing id")
	}
	return resp.ID, nil
}

// Status reports the state of a work item.
func (c *Client) Status(ctx context.Context, id string) (automation.Status, error) {
	var resp workItemResponse
	if _, err := c.doJSON(ctx, http.MethodGet, c.workItemsURL()+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return automation.Status{}, fmt.Errorf("work item status: %w", err)
	}
	return automation.Status{
		State:    mapState(resp.Status),
		Progress: resp.Progress,
		Detail:   detailFor(resp),
	}, nil
}

// mapState folds the Design Automation status vocabulary onto automation.State.
// Every failedXxx variant is a failure.
func mapState(raw string) automation.State {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "pending":
		return automation.StatePending
	case s == "inprogress":
		return automation.StateInProgress
	case s == "success":
		return automation.StateSuccess
	case s == "cancelled":
		return automation.StateCancelled
	case strings.HasPrefix(s, "failed"):
		return automation.StateFailed
	default:
		return automation.State(s)
	}
}

func detailFor(resp workItemResponse) string {
	if !strings.HasPrefix(strings.ToLower(resp.Status), "failed") && resp.Status != "cancelled" {
		return ""
	}
	if resp.ReportURL == "" {
		return resp.Status
	}
	return resp.Status + " (report: " + resp.ReportURL + ")"
}
