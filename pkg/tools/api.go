package tools

import "encoding/json"

// Request and response bodies of the ingestor's /v1/tools endpoints.

type RegisterRequest struct {
	UserID string       `json:"user_id"`
	Tools  []Descriptor `json:"tools"`
}

type RegisterResponse struct {
	Registered int      `json:"registered"`
	Keys       []string `json:"keys"`
}

type UnregisterRequest struct {
	Apps []string `json:"apps"`
}

type UnregisterResponse struct {
	Removed int `json:"removed"`
}

type ListResponse struct {
	Tools []*Tool `json:"tools"`
}

type ExecuteToolRequest struct {
	Params json.RawMessage `json:"params"`
}
