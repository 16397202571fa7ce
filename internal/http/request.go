package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"finview/internal/core"
	"finview/internal/dates"
)

// maxBodyBytes caps create request bodies.
const maxBodyBytes = 16 << 10

// createRequest is the body of POST /api/expenses and /api/incomes. Amount
// may be a JSON number or a string such as "1 234,50"; createDate accepts
// every raw date shape the normalizer understands.
type createRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	CreateDate  dates.RawDate   `json:"createDate"`
}

func decodeCreate(r *http.Request) (core.NewTransaction, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return core.NewTransaction{}, fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if len(body) > maxBodyBytes {
		return core.NewTransaction{}, fmt.Errorf("%w: body too large", errBadRequest)
	}

	var req createRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return core.NewTransaction{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	amount, err := core.ParseAmount(amountText(req.Amount))
	if err != nil {
		return core.NewTransaction{}, err
	}
	return core.NewTransaction{
		Amount:      amount,
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		CreateDate:  req.CreateDate,
	}, nil
}

func amountText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// sanitizeInput trims and drops control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
