package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ============================================================
// RPC — server-side functions invoked by name
// ============================================================

// doRPC invokes a PostgREST RPC function with named JSON parameters.
func (c *Client) doRPC(ctx context.Context, fn string, params map[string]any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn)
	jsonBody, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: RPC request failed",
			zap.String("fn", fn),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: RPC non-2xx",
			zap.String("fn", fn),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase RPC %s returned %d: %s", fn, resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: RPC OK", zap.String("fn", fn))
	return body, nil
}

// sequenceRow is the shape returned by get_next_sequence.
type sequenceRow struct {
	Sequence int    `json:"sequence"`
	FullCode string `json:"full_code"`
}

// NextNumber allocates the next document number through the
// get_next_sequence function. The sequence lives in the database so
// numbering stays gap-aware across concurrent writers. When the RPC is
// unavailable the first number of the scope is used as a fallback.
func (c *Client) NextNumber(ctx context.Context, docType string, exercice int, directionCode string) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.NextNumber")
	defer span.End()

	if directionCode == "" {
		directionCode = "GEN"
	}

	body, err := c.doRPC(ctx, "get_next_sequence", map[string]any{
		"p_doc_type":       docType,
		"p_exercice":       exercice,
		"p_direction_code": directionCode,
		"p_scope":          "direction",
	})
	if err == nil && len(body) > 0 {
		var rows []sequenceRow
		if jsonErr := json.Unmarshal(body, &rows); jsonErr == nil && len(rows) > 0 && rows[0].FullCode != "" {
			return rows[0].FullCode, nil
		}
	}

	fallback := fmt.Sprintf("ARTI/%d/%s/0001", exercice, directionCode)
	c.logger.Warn("supabase: get_next_sequence unavailable, using fallback numero",
		zap.String("doc_type", docType),
		zap.Int("exercice", exercice),
		zap.String("numero", fallback),
		zap.Error(err),
	)
	return fallback, nil
}
