// Package f1api fetches Formula 1 timing documents from the public
// live-timing static REST API: a per-year index of meetings and sessions,
// and per-session resources (driver lists, car telemetry, race-control
// messages). All documents are plain JSON over HTTPS.
package f1api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public static timing endpoint.
const DefaultBaseURL = "https://livetiming.formula1.com/static"

// Client fetches timing documents over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// get fetches a document and returns its body. A non-200 status is an error;
// there is no retry.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	// The feed serves JSON with a UTF-8 BOM on some documents.
	return stripBOM(body), nil
}

func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

// YearIndex fetches the index document for a year.
func (c *Client) YearIndex(ctx context.Context, year int) (*YearIndex, error) {
	body, err := c.get(ctx, strconv.Itoa(year)+"/Index.json")
	if err != nil {
		return nil, err
	}
	var idx YearIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, fmt.Errorf("decode year index: %w", err)
	}
	return &idx, nil
}

// DriverList fetches the driver list for a session path. The document is a
// map keyed by racing number; underscore-prefixed bookkeeping keys are
// skipped. Drivers are returned ordered by racing number.
func (c *Client) DriverList(ctx context.Context, sessionPath string) ([]Driver, error) {
	body, err := c.get(ctx, sessionPath+"DriverList.json")
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode driver list: %w", err)
	}

	drivers := make([]Driver, 0, len(raw))
	for key, val := range raw {
		if strings.HasPrefix(key, "_") {
			continue
		}
		var d Driver
		if err := json.Unmarshal(val, &d); err != nil {
			return nil, fmt.Errorf("decode driver %s: %w", key, err)
		}
		if d.RacingNumber == "" {
			d.RacingNumber = key
		}
		drivers = append(drivers, d)
	}

	sort.Slice(drivers, func(i, j int) bool {
		a, _ := strconv.Atoi(drivers[i].RacingNumber)
		b, _ := strconv.Atoi(drivers[j].RacingNumber)
		return a < b
	})
	return drivers, nil
}

// CarData fetches the car telemetry samples for a session path.
func (c *Client) CarData(ctx context.Context, sessionPath string) ([]CarSample, error) {
	body, err := c.get(ctx, sessionPath+"CarData.json")
	if err != nil {
		return nil, err
	}
	var samples []CarSample
	if err := json.Unmarshal(body, &samples); err != nil {
		return nil, fmt.Errorf("decode car data: %w", err)
	}
	return samples, nil
}

// raceControlDoc is the wrapper the feed places race-control messages in.
type raceControlDoc struct {
	Messages []RaceControlMessage `json:"Messages"`
}

// RaceControl fetches the race-control messages for a session path.
func (c *Client) RaceControl(ctx context.Context, sessionPath string) ([]RaceControlMessage, error) {
	body, err := c.get(ctx, sessionPath+"RaceControlMessages.json")
	if err != nil {
		return nil, err
	}
	var doc raceControlDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode race control messages: %w", err)
	}
	return doc.Messages, nil
}
