// Package jira files escalation issues through the Jira REST v2 API.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultIssueType = "Bug"

// Config carries the connection and issue defaults for one Jira site.
type Config struct {
	// Host is the bare site host, e.g. "example.atlassian.net".
	Host       string
	Email      string
	APIToken   string
	ProjectKey string
	// IssueType defaults to "Bug" when empty.
	IssueType string
	// BaseURL overrides "https://{Host}" as the API root. Browse links
	// always use Host.
	BaseURL string
}

// Client creates issues in a single Jira project using basic auth.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.IssueType == "" {
		cfg.IssueType = defaultIssueType
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type issuePayload struct {
	Fields issueFields `json:"fields"`
}

type issueFields struct {
	Project     projectRef `json:"project"`
	Summary     string     `json:"summary"`
	Description string     `json:"description"`
	IssueType   typeRef    `json:"issuetype"`
}

type projectRef struct {
	Key string `json:"key"`
}

type typeRef struct {
	Name string `json:"name"`
}

type issueResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// FileTicket creates an issue and returns a browse link the reporter can
// follow.
func (c *Client) FileTicket(ctx context.Context, summary, description string) (string, error) {
	payload := issuePayload{
		Fields: issueFields{
			Project:     projectRef{Key: c.cfg.ProjectKey},
			Summary:     summary,
			Description: description,
			IssueType:   typeRef{Name: c.cfg.IssueType},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal issue payload: %w", err)
	}

	root := c.cfg.BaseURL
	if root == "" {
		root = "https://" + c.cfg.Host
	}
	endpoint := root + "/rest/api/2/issue"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create jira issue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("jira returned status %d: %s", resp.StatusCode, detail)
	}

	var created issueResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode jira response: %w", err)
	}
	if created.Key == "" {
		return "", fmt.Errorf("jira response missing issue key")
	}

	return fmt.Sprintf("https://%s/browse/%s", c.cfg.Host, created.Key), nil
}
