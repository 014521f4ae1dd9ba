package rapidpro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BemiHQ/bemidb-services/syncers/syncer-rapidpro/common"
)

const (
	RAPIDPRO_API_PATH = "/api/v2/"

	RAPIDPRO_ENDPOINT_GROUPS   = "groups"
	RAPIDPRO_ENDPOINT_CONTACTS = "contacts"
	RAPIDPRO_ENDPOINT_FLOWS    = "flows"
	RAPIDPRO_ENDPOINT_RUNS     = "runs"

	RAPIDPRO_DEFAULT_RETRY_AFTER = 5 * time.Second
	MAX_RATE_LIMIT_RETRIES       = 10
)

// Read side of the API used by the syncer
type Source interface {
	Groups(ctx context.Context) ([]Group, error)
	Contacts(ctx context.Context, after time.Time) ([]Contact, error)
	Flows(ctx context.Context) ([]Flow, error)
	Runs(ctx context.Context, flowUuid string, after time.Time, onPage func(runs []Run) error) error
}

type Rapidpro struct {
	Config     *Config
	HttpClient *http.Client
	BaseUrl    string
	Token      string
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRapidpro(config *Config, token string) *Rapidpro {
	return &Rapidpro{
		Config:     config,
		HttpClient: &http.Client{Timeout: 60 * time.Second},
		BaseUrl:    config.RapidproUrl,
		Token:      token,
		sleep:      sleepContext,
	}
}

type pageResponse struct {
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

func (rapidpro *Rapidpro) Groups(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	err := fetchPages(ctx, rapidpro, RAPIDPRO_ENDPOINT_GROUPS, nil, func(page []Group) error {
		groups = append(groups, page...)
		return nil
	})
	return groups, err
}

// Contacts modified after the watermark, all contacts for a zero time
func (rapidpro *Rapidpro) Contacts(ctx context.Context, after time.Time) ([]Contact, error) {
	params := url.Values{}
	if !after.IsZero() {
		params.Set("after", common.TimeToWatermark(after))
	}

	contacts := []Contact{}
	err := fetchPages(ctx, rapidpro, RAPIDPRO_ENDPOINT_CONTACTS, params, func(page []Contact) error {
		contacts = append(contacts, page...)
		return nil
	})
	return contacts, err
}

func (rapidpro *Rapidpro) Flows(ctx context.Context) ([]Flow, error) {
	flows := []Flow{}
	err := fetchPages(ctx, rapidpro, RAPIDPRO_ENDPOINT_FLOWS, nil, func(page []Flow) error {
		flows = append(flows, page...)
		return nil
	})
	return flows, err
}

func (rapidpro *Rapidpro) Runs(ctx context.Context, flowUuid string, after time.Time, onPage func(runs []Run) error) error {
	params := url.Values{}
	params.Set("flow", flowUuid)
	if !after.IsZero() {
		params.Set("after", common.TimeToWatermark(after))
	}

	return fetchPages(ctx, rapidpro, RAPIDPRO_ENDPOINT_RUNS, params, onPage)
}

func (rapidpro *Rapidpro) endpointUrl(endpoint string, params url.Values) string {
	endpointUrl := rapidpro.BaseUrl + RAPIDPRO_API_PATH + endpoint + ".json"
	if len(params) > 0 {
		endpointUrl += "?" + params.Encode()
	}
	return endpointUrl
}

// Follows "next" links until the last page, decoding each page's results into T
func fetchPages[T any](ctx context.Context, rapidpro *Rapidpro, endpoint string, params url.Values, onPage func(page []T) error) error {
	pageUrl := rapidpro.endpointUrl(endpoint, params)

	for pageUrl != "" {
		response, err := rapidpro.fetchPage(ctx, pageUrl)
		if err != nil {
			return fmt.Errorf("failed to fetch RapidPro %s: %w", endpoint, err)
		}

		page := make([]T, 0, len(response.Results))
		for _, rawResult := range response.Results {
			var result T
			if err := json.Unmarshal(rawResult, &result); err != nil {
				return fmt.Errorf("failed to decode RapidPro %s: %w", endpoint, err)
			}
			page = append(page, result)
		}

		if err := onPage(page); err != nil {
			return err
		}

		pageUrl = ""
		if response.Next != nil {
			pageUrl = *response.Next
		}
	}

	return nil
}

func (rapidpro *Rapidpro) fetchPage(ctx context.Context, pageUrl string) (*pageResponse, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "GET", pageUrl, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Token "+rapidpro.Token)
		req.Header.Set("Accept", "application/json")

		common.LogDebug(rapidpro.Config.BaseConfig, "Sending request to RapidPro:", pageUrl)
		resp, err := rapidpro.HttpClient.Do(req)
		if err != nil {
			return nil, err
		}

		common.LogDebug(rapidpro.Config.BaseConfig, "Received response from RapidPro:", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests && attempt < MAX_RATE_LIMIT_RETRIES {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			common.LogWarn(rapidpro.Config.BaseConfig, "RapidPro rate limit exceeded, retrying in", retryAfter)
			if err := rapidpro.sleep(ctx, retryAfter); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
		}

		var response pageResponse
		err = json.NewDecoder(resp.Body).Decode(&response)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		return &response, nil
	}
}

// Retry-After is given in seconds
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return RAPIDPRO_DEFAULT_RETRY_AFTER
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
