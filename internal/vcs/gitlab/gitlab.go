package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/vcs"
	"github.com/go-resty/resty/v2"
)

const (
	name        = "gitlab"
	tokenHeader = "PRIVATE-TOKEN"
)

// Client implements vcs.SourceHost for the GitLab REST API.
type Client struct {
	api          *resty.Client
	baseURL      string
	token        string
	triggerToken string
}

func init() {
	vcs.Register(name, NewProvider)
}

// NewProvider is the factory registered with the vcs registry. Missing
// settings are reported by each call, not here.
func NewProvider(conf config.Config) (vcs.SourceHost, error) {
	return New(conf), nil
}

// New creates a GitLab client. baseURL is the API root, for example
// https://gitlab.com/api/v4.
func New(conf config.Config) *Client {
	api := resty.New()
	if conf.HostTimeout > 0 {
		api.SetTimeout(conf.HostTimeout)
	}
	return &Client{
		api:          api,
		baseURL:      conf.HostBaseURL,
		token:        conf.HostToken,
		triggerToken: conf.PipelineTriggerToken,
	}
}

func (c *Client) Info() vcs.ProviderInfo {
	return vcs.ProviderInfo{Name: name, BaseURL: c.baseURL}
}

func (c *Client) Validate() error {
	if c.baseURL == "" {
		return &vcs.ConfigError{Host: name, Setting: "BASE_URL"}
	}
	if c.token == "" {
		return &vcs.ConfigError{Host: name, Setting: "GITLAB_TOKEN"}
	}
	return nil
}

func (c *Client) request(ctx context.Context, projectID string) (*resty.Request, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.api.R().
		SetContext(ctx).
		SetHeader(tokenHeader, c.token).
		SetPathParam("project", projectID), nil
}

type changesResponse struct {
	Changes []struct {
		OldPath     string `json:"old_path"`
		NewPath     string `json:"new_path"`
		Diff        string `json:"diff"`
		NewFile     bool   `json:"new_file"`
		RenamedFile bool   `json:"renamed_file"`
		DeletedFile bool   `json:"deleted_file"`
	} `json:"changes"`
}

// FetchMRDiff calls GET /projects/:id/merge_requests/:iid/changes.
func (c *Client) FetchMRDiff(ctx context.Context, projectID string, mrIID int64) (vcs.DiffPayload, error) {
	req, err := c.request(ctx, projectID)
	if err != nil {
		return vcs.DiffPayload{}, err
	}

	resp, err := req.
		SetPathParam("mr", strconv.FormatInt(mrIID, 10)).
		Get(c.baseURL + "/projects/{project}/merge_requests/{mr}/changes")
	if err != nil {
		return vcs.DiffPayload{}, fmt.Errorf("gitlab: failed to fetch MR !%d changes: %w", mrIID, err)
	}

	payload := vcs.DiffPayload{Status: resp.StatusCode()}
	if !vcs.IsSuccess(resp.StatusCode()) {
		return payload, nil
	}

	var body changesResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return payload, fmt.Errorf("gitlab: failed to decode MR !%d changes: %w", mrIID, err)
	}

	for _, ch := range body.Changes {
		payload.Files = append(payload.Files, vcs.FileDiff{
			OldPath:     ch.OldPath,
			NewPath:     ch.NewPath,
			Diff:        ch.Diff,
			NewFile:     ch.NewFile,
			RenamedFile: ch.RenamedFile,
			DeletedFile: ch.DeletedFile,
		})
	}
	return payload, nil
}

// PostMRNote calls POST /projects/:id/merge_requests/:iid/notes.
func (c *Client) PostMRNote(ctx context.Context, projectID string, mrIID int64, body string) (int, error) {
	req, err := c.request(ctx, projectID)
	if err != nil {
		return 0, err
	}

	resp, err := req.
		SetPathParam("mr", strconv.FormatInt(mrIID, 10)).
		SetBody(map[string]string{"body": body}).
		Post(c.baseURL + "/projects/{project}/merge_requests/{mr}/notes")
	if err != nil {
		return 0, fmt.Errorf("gitlab: failed to post MR note: %w", err)
	}
	return resp.StatusCode(), nil
}

// TriggerPipeline starts a pipeline on ref. With a trigger token it uses
// POST /projects/:id/trigger/pipeline, otherwise POST /projects/:id/pipeline.
func (c *Client) TriggerPipeline(ctx context.Context, projectID string, ref string) (int, error) {
	req, err := c.request(ctx, projectID)
	if err != nil {
		return 0, err
	}

	var resp *resty.Response
	if c.triggerToken != "" {
		resp, err = req.
			SetFormData(map[string]string{
				"token":                   c.triggerToken,
				"ref":                     ref,
				"variables[AGENT_REVIEW]": "true",
			}).
			Post(c.baseURL + "/projects/{project}/trigger/pipeline")
	} else {
		resp, err = req.
			SetBody(map[string]string{"ref": ref}).
			Post(c.baseURL + "/projects/{project}/pipeline")
	}
	if err != nil {
		return 0, fmt.Errorf("gitlab: failed to trigger pipeline on %s: %w", ref, err)
	}
	return resp.StatusCode(), nil
}

// ListMRNotes returns the top-level notes of a merge request.
func (c *Client) ListMRNotes(ctx context.Context, projectID string, mrIID int64) ([]vcs.MRNote, error) {
	req, err := c.request(ctx, projectID)
	if err != nil {
		return nil, err
	}

	resp, err := req.
		SetPathParam("mr", strconv.FormatInt(mrIID, 10)).
		SetQueryParam("per_page", "100").
		Get(c.baseURL + "/projects/{project}/merge_requests/{mr}/notes")
	if err != nil {
		return nil, fmt.Errorf("gitlab: failed to list MR notes: %w", err)
	}
	if !vcs.IsSuccess(resp.StatusCode()) {
		return nil, fmt.Errorf("gitlab: failed to list MR notes: status %d", resp.StatusCode())
	}

	var notes []struct {
		ID     int64  `json:"id"`
		Body   string `json:"body"`
		Author struct {
			Username string `json:"username"`
		} `json:"author"`
	}
	if err := json.Unmarshal(resp.Body(), &notes); err != nil {
		return nil, fmt.Errorf("gitlab: failed to decode MR notes: %w", err)
	}

	out := make([]vcs.MRNote, 0, len(notes))
	for _, n := range notes {
		out = append(out, vcs.MRNote{ID: n.ID, Author: n.Author.Username, Body: n.Body})
	}
	return out, nil
}
