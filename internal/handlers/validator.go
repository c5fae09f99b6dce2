package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request bodies are checked against JSON Schemas before they reach any
// business rule, so handlers never see a structurally bad payload.

const createAccountSchema = `{
	"type": "object",
	"required": ["account_id", "balance"],
	"additionalProperties": false,
	"properties": {
		"account_id": {"type": "string", "minLength": 36, "maxLength": 36},
		"balance": {"type": ["number", "string"]}
	}
}`

const createTransferSchema = `{
	"type": "object",
	"required": ["source", "destination", "amount"],
	"additionalProperties": false,
	"properties": {
		"source": {"type": "string", "minLength": 36, "maxLength": 36},
		"destination": {"type": "string", "minLength": 36, "maxLength": 36},
		"amount": {"type": ["number", "string"]}
	}
}`

var (
	accountSchema  = jsonschema.MustCompileString("accounts.json", createAccountSchema)
	transferSchema = jsonschema.MustCompileString("transfers.json", createTransferSchema)
)

// decodeBody validates the request body against schema and unmarshals it
// into dst. The returned error text is safe to show to the caller.
func decodeBody(r *http.Request, schema *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
