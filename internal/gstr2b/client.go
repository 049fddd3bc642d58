package gstr2b

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gstrecon/internal"
	"gstrecon/internal/config"
)

// Client fetches GSTR2B statements from the GST portal taxpayer API.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Status string          `json:"status_cd"`
	Error  json.RawMessage `json:"error,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// Wire shapes of the GSTR2B document section. Field names follow the portal
// payload: ctin is the supplier GSTIN, inum the invoice number, dt the
// dd-mm-yyyy document date, val the invoice value.
type b2bPayload struct {
	DocData struct {
		B2B []struct {
			CTIN     string `json:"ctin"`
			TradeNm  string `json:"trdnm"`
			Invoices []struct {
				Number string  `json:"inum"`
				Date   string  `json:"dt"`
				Value  float64 `json:"val"`
				Items  []struct {
					Detail struct {
						TaxableValue float64 `json:"txval"`
						IGST         float64 `json:"iamt"`
						CGST         float64 `json:"camt"`
						SGST         float64 `json:"samt"`
					} `json:"itm_det"`
				} `json:"itms"`
			} `json:"inv"`
		} `json:"b2b"`
	} `json:"docdata"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.GSTAPITimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.GSTAPIRateLimRPS),
	}
}

// FetchB2B pulls the B2B section of the GSTR2B statement for one taxpayer
// and return period (MMYYYY) and flattens it into invoice records.
func (c *Client) FetchB2B(ctx context.Context, gstin, period string) ([]internal.InvoiceRecord, error) {
	body, err := c.fetchJSON(ctx, "returns/gstr2b", map[string]string{
		"gstin":  gstin,
		"rtnprd": period,
	})
	if err != nil {
		return nil, err
	}

	var payload b2bPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode gstr2b payload: %w", err)
	}

	out := []internal.InvoiceRecord{}
	for _, supplier := range payload.DocData.B2B {
		for _, inv := range supplier.Invoices {
			rec := internal.InvoiceRecord{
				SourceID:      fmt.Sprintf("%s/%s", supplier.CTIN, inv.Number),
				SupplierGSTIN: supplier.CTIN,
				InvoiceNumber: inv.Number,
				RawDate:       inv.Date,
				TotalAmount:   decimal.NewFromFloat(inv.Value),
				Status:        internal.StatusPending,
			}
			for _, item := range inv.Items {
				rec.TaxableValue = rec.TaxableValue.Add(decimal.NewFromFloat(item.Detail.TaxableValue))
				rec.CGST = rec.CGST.Add(decimal.NewFromFloat(item.Detail.CGST))
				rec.SGST = rec.SGST.Add(decimal.NewFromFloat(item.Detail.SGST))
				rec.IGST = rec.IGST.Add(decimal.NewFromFloat(item.Detail.IGST))
			}
			out = append(out, rec)
		}
	}

	return out, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.GSTAPIToken) == "" {
		return nil, errors.New("missing GST_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.GSTAPIBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.GSTAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				if resp.StatusCode == http.StatusTooManyRequests {
					if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
						c.limiter.Penalize(time.Duration(secs) * time.Second)
					}
				}
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("gst portal status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("gst portal error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if apiResp.Status != "1" {
			return nil, fmt.Errorf("gst portal unsuccessful: %s", string(apiResp.Error))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("gst portal request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
