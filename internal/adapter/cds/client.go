// Package cds retrieves monthly ERA5 fields through the Climate Data Store
// job API: submit a request, poll the job until it finishes, download the
// result. Spatial subsetting happens on the server.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

const (
	// DefaultBaseURL is the public CDS API root.
	DefaultBaseURL = "https://cds.climate.copernicus.eu/api"

	// Dataset is the single-level hourly reanalysis collection.
	Dataset = "reanalysis-era5-single-levels"
)

// Job states reported by the service.
const (
	statusAccepted   = "accepted"
	statusRunning    = "running"
	statusSuccessful = "successful"
	statusFailed     = "failed"
	statusRejected   = "rejected"
	statusDismissed  = "dismissed"
)

// Client implements pipeline.Retriever for the CDS job API. Polling has no
// deadline; a stalled job blocks until the context is cancelled.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	region       domain.Region
	pollInterval time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewClient creates a CDS client that requests region's area server-side.
func NewClient(baseURL, token string, region domain.Region, pollInterval time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:   &http.Client{},
		baseURL:      strings.TrimRight(baseURL, "/"),
		token:        token,
		region:       region,
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
		logger:       logger,
	}
}

// Request is the body of a retrieval job.
type Request struct {
	ProductType    []string   `json:"product_type"`
	Variable       []string   `json:"variable"`
	Year           []string   `json:"year"`
	Month          []string   `json:"month"`
	Day            []string   `json:"day"`
	Time           []string   `json:"time"`
	Area           [4]float64 `json:"area"`
	Grid           [2]float64 `json:"grid"`
	DataFormat     string     `json:"data_format"`
	DownloadFormat string     `json:"download_format"`
}

// NewRequest builds the one-month request for key over region.
func NewRequest(key domain.ArchiveKey, region domain.Region) Request {
	days := make([]string, 31)
	for i := range days {
		days[i] = fmt.Sprintf("%02d", i+1)
	}
	hours := make([]string, 24)
	for i := range hours {
		hours[i] = fmt.Sprintf("%02d:00", i)
	}
	return Request{
		ProductType:    []string{"reanalysis"},
		Variable:       []string{key.Parameter},
		Year:           []string{fmt.Sprintf("%d", key.Year)},
		Month:          []string{fmt.Sprintf("%02d", key.Month)},
		Day:            days,
		Time:           hours,
		Area:           region.Area(),
		Grid:           [2]float64{0.25, 0.25},
		DataFormat:     "netcdf",
		DownloadFormat: "unarchived",
	}
}

type jobResponse struct {
	JobID   string `json:"jobID"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type resultsResponse struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
		} `json:"value"`
	} `json:"asset"`
}

// Retrieve submits the job for key, waits for it and streams the result into w.
func (c *Client) Retrieve(ctx context.Context, key domain.ArchiveKey, w io.Writer) error {
	job, err := c.submit(ctx, NewRequest(key, c.region))
	if err != nil {
		return err
	}
	c.logger.Info("cds job submitted", "job_id", job.JobID, "key", key.String())

	if err := c.wait(ctx, job); err != nil {
		return err
	}

	var results resultsResponse
	if err := c.getJSON(ctx, c.baseURL+"/retrieve/v1/jobs/"+job.JobID+"/results", &results); err != nil {
		return err
	}
	if results.Asset.Value.Href == "" {
		return fmt.Errorf("%w: cds job %s has no result asset", domain.ErrRetrieval, job.JobID)
	}
	return c.download(ctx, results.Asset.Value.Href, w)
}

func (c *Client) submit(ctx context.Context, r Request) (jobResponse, error) {
	body, err := json.Marshal(map[string]Request{"inputs": r})
	if err != nil {
		return jobResponse{}, fmt.Errorf("encode request: %w", err)
	}
	u := c.baseURL + "/retrieve/v1/processes/" + Dataset + "/execution"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return jobResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var job jobResponse
	if err := c.doJSON(req, &job); err != nil {
		return jobResponse{}, err
	}
	if job.JobID == "" {
		return jobResponse{}, fmt.Errorf("%w: cds submit returned no job id", domain.ErrRetrieval)
	}
	return job, nil
}

// wait polls the job every pollInterval until it reaches a final state.
func (c *Client) wait(ctx context.Context, job jobResponse) error {
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		switch job.Status {
		case statusSuccessful:
			return nil
		case statusFailed, statusRejected, statusDismissed:
			return fmt.Errorf("%w: cds job %s %s: %s", domain.ErrRetrieval, job.JobID, job.Status, job.Message)
		case statusAccepted, statusRunning, "":
		default:
			c.logger.Warn("unknown cds job status", "job_id", job.JobID, "status", job.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		var next jobResponse
		if err := c.getJSON(ctx, c.baseURL+"/retrieve/v1/jobs/"+job.JobID, &next); err != nil {
			return err
		}
		if next.JobID == "" {
			next.JobID = job.JobID
		}
		if next.Status != job.Status {
			c.logger.Debug("cds job status", "job_id", next.JobID, "status", next.Status)
		}
		job = next
	}
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doJSON(req, v)
}

func (c *Client) doJSON(req *http.Request, v any) error {
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: cds %s: %w", domain.ErrRetrieval, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, req.URL.Path); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode cds response: %w", domain.ErrRetrieval, err)
	}
	return nil
}

func (c *Client) download(ctx context.Context, href string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: cds download: %w", domain.ErrRetrieval, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, href); err != nil {
		return err
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: cds download: %w", domain.ErrRetrieval, err)
	}
	return nil
}

func checkStatus(resp *http.Response, what string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: cds %s", domain.ErrNotFound, what)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: cds %s: status %d: %s", domain.ErrRetrieval, what, resp.StatusCode, body)
	}
}
