// Package remote mirrors the process list to a hosted spreadsheet endpoint.
// The endpoint speaks a loose wire dialect: GET returns the full row set as
// JSON with inconsistent scalar types, POST accepts verb envelopes as
// text/plain. The client normalizes both directions.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"procesocore/pkg/domain"
)

// Status reports the mirror link state.
type Status string

// Mirror link states. Disconnected doubles as the unconfigured/offline state.
const (
	StatusConnected    Status = "connected"
	StatusSyncing      Status = "syncing"
	StatusDisconnected Status = "disconnected"
)

// Action is the verb carried in a push envelope.
type Action string

// Push verbs understood by the spreadsheet endpoint.
const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const defaultTimeout = 15 * time.Second

// Client talks to one spreadsheet endpoint. A zero URL leaves the client in
// offline mode: every call is a no-op and the status stays disconnected.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	status Status
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a mirror client for the given endpoint URL. An empty
// URL yields an offline client.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    strings.TrimSpace(url),
		http:   &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
		status: StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an endpoint URL is set.
func (c *Client) Configured() bool { return c.url != "" }

// Status returns the current mirror link state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Fetch retrieves the full record list from the endpoint, coercing loose wire
// values into canonical records. It flips the status to syncing for the
// duration and to connected or disconnected by outcome.
func (c *Client) Fetch(ctx context.Context) ([]domain.ProcessRecord, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("remote mirror not configured")
	}
	c.setStatus(StatusSyncing)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("fetch mirror: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		c.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("fetch mirror: status %d", resp.StatusCode)
	}
	var rows []wireProcess
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		c.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("decode mirror payload: %w", err)
	}
	records := make([]domain.ProcessRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	c.setStatus(StatusConnected)
	c.logger.Debug("mirror fetch complete", "records", len(records))
	return records, nil
}

// envelope is the POST body shape the endpoint expects.
type envelope struct {
	Action  Action `json:"action"`
	Payload any    `json:"payload"`
	Stage   string `json:"stage,omitempty"`
}

// PushAdd appends a full record row.
func (c *Client) PushAdd(ctx context.Context, record domain.ProcessRecord) error {
	return c.post(ctx, envelope{Action: ActionAdd, Payload: record})
}

// PushUpdate writes a single field of an existing row. The field name travels
// in the stage slot and the new value inside the payload.
func (c *Client) PushUpdate(ctx context.Context, id, field string, value any) error {
	payload := map[string]any{"id": id, "value": value}
	return c.post(ctx, envelope{Action: ActionUpdate, Payload: payload, Stage: field})
}

// PushDelete removes the row matching the record ID.
func (c *Client) PushDelete(ctx context.Context, id string) error {
	return c.post(ctx, envelope{Action: ActionDelete, Payload: map[string]any{"id": id}})
}

// post sends a verb envelope. The endpoint ignores request content types other
// than text/plain, and its response body carries no information the caller
// needs, so only the HTTP status is inspected.
func (c *Client) post(ctx context.Context, env envelope) error {
	if !c.Configured() {
		return nil
	}
	c.setStatus(StatusSyncing)
	body, err := json.Marshal(env)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		c.setStatus(StatusDisconnected)
		return err
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")
	resp, err := c.http.Do(req)
	if err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("push %s: %w", env.Action, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("push %s: status %d", env.Action, resp.StatusCode)
	}
	c.setStatus(StatusConnected)
	return nil
}

// wireProcess tolerates the endpoint's scalar sloppiness: numbers arrive as
// strings, dates as full timestamps, and broken formula cells as error
// sentinels.
type wireProcess struct {
	ID                    wireString `json:"id"`
	Name                  wireString `json:"name"`
	ProcessType           wireString `json:"processType"`
	Budget                wireAmount `json:"budget"`
	FinalAwardedAmount    wireAmount `json:"finalAwardedAmount"`
	MarketStudyReportDate wireDate   `json:"marketStudyReportDate"`
	ProcessStartDate      wireDate   `json:"processStartDate"`
	PlanningCertDate      wireDate   `json:"planningCertDate"`
	ProcurementCertDate   wireDate   `json:"procurementCertDate"`
	FinancialCertDate     wireDate   `json:"financialCertDate"`
	DelegateCertDate      wireDate   `json:"delegateCertDate"`
	LegalCertDate         wireDate   `json:"legalCertDate"`
	AwardedCertDate       wireDate   `json:"awardedCertDate"`
	CreatedAt             wireDate   `json:"createdAt"`
}

func (w wireProcess) toRecord() domain.ProcessRecord {
	record := domain.ProcessRecord{
		ID:                    string(w.ID),
		Name:                  string(w.Name),
		ProcessType:           domain.ProcessType(w.ProcessType),
		Budget:                w.Budget.value(),
		MarketStudyReportDate: string(w.MarketStudyReportDate),
		ProcessStartDate:      string(w.ProcessStartDate),
		PlanningCertDate:      string(w.PlanningCertDate),
		ProcurementCertDate:   string(w.ProcurementCertDate),
		FinancialCertDate:     string(w.FinancialCertDate),
		DelegateCertDate:      string(w.DelegateCertDate),
		LegalCertDate:         string(w.LegalCertDate),
		AwardedCertDate:       string(w.AwardedCertDate),
		CreatedAt:             string(w.CreatedAt),
	}
	if w.FinalAwardedAmount.present {
		amount := w.FinalAwardedAmount.value()
		record.FinalAwardedAmount = &amount
	}
	return record
}

func formulaError(s string) bool {
	switch s {
	case "#NUM!", "#VALUE!", "#DIV/0!":
		return true
	}
	return false
}

// wireString accepts strings and bare numbers.
type wireString string

func (w *wireString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*w = wireString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*w = wireString(n.String())
		return nil
	}
	*w = ""
	return nil
}

// wireAmount accepts numbers, numeric strings, and garbage. Anything that
// does not parse coerces to zero rather than failing the whole fetch.
type wireAmount struct {
	amount  decimal.Decimal
	present bool
}

func (w *wireAmount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" || formulaError(s) {
			return nil
		}
		if d, err := decimal.NewFromString(s); err == nil {
			w.amount, w.present = d, true
		}
		return nil
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		w.amount, w.present = d, true
	}
	return nil
}

func (w wireAmount) value() decimal.Decimal {
	if !w.present {
		return decimal.Zero
	}
	return w.amount
}

// wireDate accepts calendar dates and full timestamps, trimming the latter to
// their date part. Formula errors and non-strings coerce to empty.
type wireDate string

func (w *wireDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*w = ""
		return nil
	}
	s = strings.TrimSpace(s)
	if formulaError(s) {
		*w = ""
		return nil
	}
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		s = s[:i]
	}
	*w = wireDate(s)
	return nil
}
