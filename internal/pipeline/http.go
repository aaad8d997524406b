package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const defaultSignalTimeout = 5 * time.Second

// HTTPStage drives a stage that lives behind its own HTTP listener. Start
// posts to the stage's start endpoint; Release invokes the shutdown hook,
// normally http.Server.Shutdown.
type HTTPStage struct {
	name     string
	startURL string
	client   *http.Client
	releaser func(ctx context.Context) error
}

func NewHTTPStage(name, startURL string, releaser func(ctx context.Context) error) *HTTPStage {
	return &HTTPStage{
		name:     name,
		startURL: startURL,
		client:   &http.Client{Timeout: defaultSignalTimeout},
		releaser: releaser,
	}
}

func (s *HTTPStage) Start(ctx context.Context) error {
	if err := post(ctx, s.client, s.startURL); err != nil {
		return fmt.Errorf("failed to start stage %s: %w", s.name, err)
	}
	return nil
}

func (s *HTTPStage) Release(ctx context.Context) error {
	if s.releaser == nil {
		return nil
	}
	return s.releaser(ctx)
}

// HTTPNotifier posts an empty-body signal to a fixed URL. It serves both
// directions: stage completion signals to the coordinator and the
// coordinator's serving signal to the query stage.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		client: &http.Client{Timeout: defaultSignalTimeout},
	}
}

// NotifyComplete satisfies the stage services' completion contract.
func (n *HTTPNotifier) NotifyComplete(ctx context.Context) error {
	return post(ctx, n.client, n.url)
}

// NotifyServing satisfies the coordinator's serving contract.
func (n *HTTPNotifier) NotifyServing(ctx context.Context) error {
	return post(ctx, n.client, n.url)
}

func post(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("signal to %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
