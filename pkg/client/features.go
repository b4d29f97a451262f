package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Sternrassler/ago-extract/pkg/table"
)

// FeaturesKey is the response key holding the page of features.
const FeaturesKey = "features"

// DefaultFormat is the response format requested from the query endpoint.
const DefaultFormat = "pjson"

// FeatureQuery fetches pages from one Feature Server layer query endpoint.
type FeatureQuery struct {
	client   *Client
	endpoint string
	token    string

	// Format is sent as the f parameter (json or pjson).
	Format string
}

// NewFeatureQuery returns a fetcher for endpoint authenticated with token.
func (c *Client) NewFeatureQuery(endpoint, token string) *FeatureQuery {
	return &FeatureQuery{
		client:   c,
		endpoint: endpoint,
		token:    token,
		Format:   DefaultFormat,
	}
}

// Params builds the query string for one page.
func (q *FeatureQuery) Params(where string) url.Values {
	params := url.Values{}
	params.Set("where", where)
	params.Set("outFields", "*")
	params.Set("f", q.Format)
	if q.token != "" {
		params.Set("token", q.token)
	}
	return params
}

// FetchPage requests the features matching where and flattens them.
func (q *FeatureQuery) FetchPage(ctx context.Context, where string) ([]table.Record, error) {
	q.client.logger.Debug().
		Str("endpoint", q.endpoint).
		Str("where", where).
		Msg("Querying features")

	body, err := q.client.GetJSON(ctx, q.endpoint, q.Params(where))
	if err != nil {
		return nil, err
	}
	return DecodeFeatures(body)
}

// DecodeFeatures parses a query response body into flattened records.
// An empty slice means the service has no more records.
func DecodeFeatures(body []byte) ([]table.Record, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		agoErrorsTotal.WithLabelValues("decode").Inc()
		return nil, &DecodeError{Body: truncate(body), Err: err}
	}

	raw, ok := envelope[FeaturesKey]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		agoErrorsTotal.WithLabelValues("missing_data").Inc()
		missing := &MissingDataError{Key: FeaturesKey, Body: truncate(body)}
		if svcRaw, ok := envelope["error"]; ok {
			var svc ServiceError
			if err := json.Unmarshal(svcRaw, &svc); err == nil {
				missing.Service = &svc
			}
		}
		return nil, missing
	}

	var features []json.RawMessage
	if err := json.Unmarshal(raw, &features); err != nil {
		agoErrorsTotal.WithLabelValues("decode").Inc()
		return nil, &DecodeError{Body: truncate(body), Err: fmt.Errorf("%q is not a list: %w", FeaturesKey, err)}
	}

	records := make([]table.Record, 0, len(features))
	for i, f := range features {
		rec, err := table.Flatten(f)
		if err != nil {
			agoErrorsTotal.WithLabelValues("decode").Inc()
			if errors.Is(err, table.ErrNotObject) {
				err = fmt.Errorf("feature %d: %w", i, err)
			}
			return nil, &DecodeError{Body: truncate(f), Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}
