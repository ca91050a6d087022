package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/smallbiznis/esimgate/internal/config"
	"go.uber.org/zap"
)

// Response bodies are error detail at most; cap what we read back.
const maxErrorBody = 4 << 10

var requests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "esimgate",
	Subsystem: "provider",
	Name:      "requests_total",
	Help:      "Provider API calls partitioned by operation and outcome.",
}, []string{"op", "outcome"})

type httpClient struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	log    *zap.Logger
}

// NewClient builds the bearer-authenticated REST client for the
// provisioning API.
func NewClient(cfg config.Config, log *zap.Logger) (Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Provider.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider base url: %w", err)
	}
	return &httpClient{
		base:   base,
		apiKey: cfg.Provider.APIKey,
		http:   &http.Client{Timeout: cfg.Provider.Timeout},
		log:    log.Named("provider.client"),
	}, nil
}

type offersResponse struct {
	List []Offer `json:"list"`
}

func (c *httpClient) ListOffers(ctx context.Context, country string, limit, offset int) ([]Offer, error) {
	query := url.Values{
		"_limit":  []string{strconv.Itoa(limit)},
		"_offset": []string{strconv.Itoa(offset)},
		"country": []string{strings.ToUpper(country)},
	}

	var out offersResponse
	if err := c.do(ctx, "list_offers", http.MethodGet, "/esim/offers?"+query.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.List, nil
}

type createPurchaseRequest struct {
	OfferID       string `json:"offerId"`
	TransactionID string `json:"transactionId"`
}

func (c *httpClient) CreatePurchase(ctx context.Context, offerID, transactionID string) (*Purchase, error) {
	body := createPurchaseRequest{OfferID: offerID, TransactionID: transactionID}

	var out Purchase
	if err := c.do(ctx, "create_purchase", http.MethodPost, "/esim/purchases", body, &out); err != nil {
		return nil, err
	}
	if out.TransactionID == "" {
		out.TransactionID = transactionID
	}
	return &out, nil
}

func (c *httpClient) GetPurchaseStatus(ctx context.Context, transactionID string) (*Purchase, error) {
	var out Purchase
	path := "/esim/purchases/" + url.PathEscape(transactionID)
	if err := c.do(ctx, "get_status", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) GetPurchaseQRCode(ctx context.Context, transactionID string) ([]byte, error) {
	path := "/esim/purchases/" + url.PathEscape(transactionID) + "/qrcode"

	resp, err := c.send(ctx, "get_qrcode", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		requests.WithLabelValues("get_qrcode", "unavailable").Inc()
		return nil, fmt.Errorf("%w: read qrcode body: %v", ErrUnavailable, err)
	}
	requests.WithLabelValues("get_qrcode", "ok").Inc()
	return payload, nil
}

func (c *httpClient) do(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		requests.WithLabelValues(op, "unavailable").Inc()
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, op, err)
	}
	requests.WithLabelValues(op, "ok").Inc()
	return nil
}

func (c *httpClient) send(ctx context.Context, op, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		requests.WithLabelValues(op, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	detail := readErrorBody(resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		requests.WithLabelValues(op, "unavailable").Inc()
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnavailable, op, resp.StatusCode)
	}

	requests.WithLabelValues(op, "rejected").Inc()
	c.log.Debug("provider rejected request",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.String("detail", detail),
	)
	return nil, fmt.Errorf("%w: %s returned %d", ErrRejected, op, resp.StatusCode)
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
