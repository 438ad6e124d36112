package model

import "time"

// APIResponse is the JSON envelope returned by data endpoints
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LoginResponse is the data of a successful login or token refresh
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Rejection explains why a file did not become a task
type Rejection struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

// UploadBatch reports what happened to each file of an upload request
type UploadBatch struct {
	Accepted []*UploadTask `json:"accepted"`
	Rejected []Rejection   `json:"rejected"`
}

// InvoicePage is one page of the invoice list
type InvoicePage struct {
	Items []*Invoice `json:"items"`
	Total int        `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
}
