package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GraysonCAdams/amazon-ynab-sync/internal"
	"github.com/GraysonCAdams/amazon-ynab-sync/internal/config"
)

const ledgerDateLayout = "2006-01-02"

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

type Budget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type budgetsPayload struct {
	Budgets []Budget `json:"budgets"`
}

type transactionJSON struct {
	ID        string  `json:"id"`
	Date      string  `json:"date"`
	Amount    int64   `json:"amount"`
	Memo      *string `json:"memo"`
	PayeeName *string `json:"payee_name"`
	Approved  bool    `json:"approved"`
	Deleted   bool    `json:"deleted"`
}

type transactionsPayload struct {
	Transactions    []transactionJSON `json:"transactions"`
	ServerKnowledge int64             `json:"server_knowledge"`
}

// MemoUpdate is one memo write applied by UpdateTransactions.
type MemoUpdate struct {
	ID       string `json:"id"`
	Memo     string `json:"memo"`
	Approved bool   `json:"approved"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.YNABTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.YNABRateLimitRPS),
	}
}

// GetBudget resolves the configured budget id against the account's
// budget list, failing early on a typo'd id.
func (c *Client) GetBudget(ctx context.Context) (Budget, error) {
	body, err := c.do(ctx, http.MethodGet, "budgets", nil, nil)
	if err != nil {
		return Budget{}, err
	}

	var payload budgetsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Budget{}, err
	}
	for _, b := range payload.Budgets {
		if b.ID == c.cfg.YNABBudgetID {
			return b, nil
		}
	}
	return Budget{}, errors.New("invalid budget ID provided; the budget ID is in the URL of your budget page")
}

// GetTransactions fetches the budget's transactions. A non-nil
// serverKnowledge makes the fetch incremental: only records changed
// since that point come back, together with the new knowledge value.
func (c *Client) GetTransactions(ctx context.Context, sinceDate *time.Time, serverKnowledge *int64) ([]internal.Transaction, int64, error) {
	params := map[string]string{}
	if sinceDate != nil {
		params["since_date"] = sinceDate.Format(ledgerDateLayout)
	}
	if serverKnowledge != nil {
		params["last_knowledge_of_server"] = strconv.FormatInt(*serverKnowledge, 10)
	}

	body, err := c.do(ctx, http.MethodGet, "budgets/"+c.cfg.YNABBudgetID+"/transactions", params, nil)
	if err != nil {
		return nil, 0, err
	}

	var payload transactionsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, err
	}

	out := make([]internal.Transaction, 0, len(payload.Transactions))
	for _, t := range payload.Transactions {
		parsed, err := toTransaction(t)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out, payload.ServerKnowledge, nil
}

// UpdateTransactions writes memos in one bulk call. Partial failure is
// the caller's concern: a failed call leaves every pair unapplied and
// they simply re-match next cycle.
func (c *Client) UpdateTransactions(ctx context.Context, updates []MemoUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	payload := struct {
		Transactions []MemoUpdate `json:"transactions"`
	}{Transactions: updates}

	blob, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPatch, "budgets/"+c.cfg.YNABBudgetID+"/transactions", nil, blob)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, params map[string]string, body []byte) ([]byte, error) {
	if strings.TrimSpace(c.cfg.YNABToken) == "" {
		return nil, errors.New("missing YNAB_TOKEN")
	}

	url := strings.TrimRight(c.cfg.YNABAPIBaseURL, "/") + "/" + endpoint
	if len(params) > 0 {
		pairs := make([]string, 0, len(params))
		for k, v := range params {
			if strings.TrimSpace(v) != "" {
				pairs = append(pairs, k+"="+v)
			}
		}
		if len(pairs) > 0 {
			url += "?" + strings.Join(pairs, "&")
		}
	}

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.YNABToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("ledger status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("ledger api error: status=%d body=%s", resp.StatusCode, string(respBody))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(respBody, &apiResp); err != nil {
			return nil, err
		}
		if apiResp.Error != nil {
			return nil, fmt.Errorf("ledger api unsuccessful: %s %s", apiResp.Error.Name, apiResp.Error.Detail)
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("ledger request failed")
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

func toTransaction(t transactionJSON) (internal.Transaction, error) {
	// Order dates are truncated to local midnight by the extractor;
	// parse ledger days in the same location so an exact date match
	// really is a zero difference.
	date, err := time.ParseInLocation(ledgerDateLayout, t.Date, time.Local)
	if err != nil {
		return internal.Transaction{}, err
	}

	out := internal.Transaction{
		ID:       t.ID,
		Date:     date,
		Amount:   t.Amount,
		Approved: t.Approved,
		Deleted:  t.Deleted,
	}
	if t.Memo != nil {
		out.Memo = *t.Memo
	}
	if t.PayeeName != nil {
		out.PayeeName = *t.PayeeName
	}
	return out, nil
}
