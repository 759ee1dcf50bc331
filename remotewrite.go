package shelterboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
)

// maxSeriesPerPush bounds one remote-write request; larger datasets are
// split across requests.
const maxSeriesPerPush = 500

// RemoteWritePublisher pushes dataset series to a Prometheus remote-write
// endpoint after each refresh. Values are published in source units
// (fractions, counts, days) without smoothing; labels carry the
// organization, family trace, and variant.
type RemoteWritePublisher struct {
	cfg      RemoteWriteConfig
	client   HTTPDoer
	retryer  *Retryer
	breaker  *CircuitBreaker
	families []Family
	variant  Variant
}

// NewRemoteWritePublisher builds a publisher from configuration. An empty
// family list publishes the whole catalog.
func NewRemoteWritePublisher(cfg RemoteWriteConfig) (*RemoteWritePublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("remotewrite: url is required")
	}
	variant, err := ParseVariant(cfg.Variant)
	if err != nil {
		return nil, fmt.Errorf("remotewrite: %w", err)
	}

	var fams []Family
	if len(cfg.Families) == 0 {
		fams = Families()
	} else {
		for _, key := range cfg.Families {
			f, err := FamilyByKey(key)
			if err != nil {
				return nil, fmt.Errorf("remotewrite: %w", err)
			}
			fams = append(fams, f)
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteWritePublisher{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout},
		retryer:  NewRetryer(cfg.Retry),
		breaker:  NewCircuitBreaker(5, 30*time.Second),
		families: fams,
		variant:  variant,
	}, nil
}

// Publish converts the dataset into remote-write requests and sends them.
// Families whose columns are absent from the dataset are skipped with a log
// line rather than failing the push.
func (p *RemoteWritePublisher) Publish(ctx context.Context, ds *Dataset) error {
	series := p.collect(ds)
	if len(series) == 0 {
		return nil
	}

	for start := 0; start < len(series); start += maxSeriesPerPush {
		end := start + maxSeriesPerPush
		if end > len(series) {
			end = len(series)
		}
		req := &prompb.WriteRequest{Timeseries: series[start:end]}
		if err := p.send(ctx, req); err != nil {
			return fmt.Errorf("remotewrite: push to %s: %w", p.cfg.URL, err)
		}
	}
	return nil
}

// PublishAsync publishes in the background, logging failures. Suitable as a
// Refresher OnSwap callback.
func (p *RemoteWritePublisher) PublishAsync(ds *Dataset) {
	go func() {
		timeout := p.cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), 4*timeout)
		defer cancel()
		if err := p.Publish(ctx, ds); err != nil {
			slog.Warn("remote write failed", "err", err)
		}
	}()
}

func (p *RemoteWritePublisher) collect(ds *Dataset) []prompb.TimeSeries {
	var out []prompb.TimeSeries
	for _, org := range ds.Organizations() {
		rows, err := ds.RowsForOrg(org.ID)
		if err != nil {
			continue
		}
		for _, family := range p.families {
			resolved, err := ResolveColumns(ds, family, p.variant, true)
			if err != nil {
				slog.Debug("remote write skipping family", "family", family.Key, "err", err)
				continue
			}
			for _, rc := range resolved {
				samples := make([]prompb.Sample, 0, len(rows))
				for _, row := range rows {
					v, ok := row.Value(rc.Column)
					if !ok || math.IsNaN(v) {
						continue
					}
					samples = append(samples, prompb.Sample{
						Value:     v,
						Timestamp: row.Month.Time().UnixMilli(),
					})
				}
				if len(samples) == 0 {
					continue
				}
				out = append(out, prompb.TimeSeries{
					Labels: []prompb.Label{
						{Name: "__name__", Value: seriesMetricName(family, rc.Trace)},
						{Name: "org_id", Value: fmt.Sprintf("%d", org.ID)},
						{Name: "org_name", Value: org.Name},
						{Name: "variant", Value: p.variant.String()},
					},
					Samples: samples,
				})
			}
		}
	}
	return out
}

// seriesMetricName derives the __name__ label: single-trace families use
// the family key alone, multi-trace families append the trace slug.
func seriesMetricName(family Family, trace Trace) string {
	if len(family.Traces) == 1 {
		return "shelter_" + family.Key
	}
	return "shelter_" + family.Key + "_" + metricSlug(trace.Label)
}

func metricSlug(label string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func (p *RemoteWritePublisher) send(ctx context.Context, req *prompb.WriteRequest) error {
	payload, err := req.Marshal()
	if err != nil {
		return fmt.Errorf("marshal write request: %w", err)
	}
	compressed := snappy.Encode(nil, payload)

	return p.retryer.Do(ctx, func() error {
		return p.breaker.Execute(func() error {
			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(compressed))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/x-protobuf")
			httpReq.Header.Set("Content-Encoding", "snappy")
			httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
			for k, v := range p.cfg.Headers {
				httpReq.Header.Set(k, v)
			}

			resp, err := p.client.Do(httpReq)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode/100 != 2 {
				return &StatusError{Code: resp.StatusCode, URL: p.cfg.URL}
			}
			return nil
		})
	})
}
