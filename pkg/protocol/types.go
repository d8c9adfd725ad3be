// Package protocol defines the wire types shared by the inout daemon and
// its clients. Only constant bindings cross the socket; provider and
// processor functions stay in-process.
package protocol

import "time"

// Binding declares a constant provider for a wire-safe type.
type Binding struct {
	Store    string  `json:"store,omitempty"`
	Type     string  `json:"type"`
	Value    any     `json:"value"`
	Weight   float64 `json:"weight,omitempty"`
	Optional bool    `json:"optional,omitempty"`
}

type RegisterRequest struct {
	Bindings []Binding `json:"bindings"`
}

// RegisterResponse carries a token the client can later use to dispose
// everything the request registered.
type RegisterResponse struct {
	Registered int    `json:"registered"`
	Token      string `json:"token"`
}

type DisposeRequest struct {
	Token string `json:"token"`
}

type DisposeResponse struct {
	Disposed bool `json:"disposed"`
}

type ProvideRequest struct {
	Store    string `json:"store,omitempty"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

type ProvideResponse struct {
	Found bool `json:"found"`
	Value any  `json:"value,omitempty"`
}

type ProcessRequest struct {
	Store     string `json:"store,omitempty"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
	FirstOnly bool   `json:"first_only,omitempty"`
}

type ProcessResponse struct {
	Processed bool `json:"processed"`
}

type StoreRequest struct {
	Name string `json:"name"`
}

type StoreInfo struct {
	Name       string `json:"name"`
	Providers  int    `json:"providers"`
	Processors int    `json:"processors"`
}

type ListStoresResponse struct {
	Stores []StoreInfo `json:"stores"`
}

type RegistrationList struct {
	Store        string `json:"store"`
	Registration []Slot `json:"registrations"`
}

// Slot describes one provider or processor registration.
type Slot struct {
	Hint     string  `json:"hint"`
	Optional bool    `json:"optional,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
}

type AuditEvent struct {
	ID        string    `json:"id"`
	Store     string    `json:"store"`
	Kind      string    `json:"kind"`
	Hint      string    `json:"hint,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditRecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

type AuditRecentResponse struct {
	Events []AuditEvent `json:"events"`
}

type AuditStatsResponse struct {
	Total   int64            `json:"total"`
	Misses  int64            `json:"misses"`
	ByKind  map[string]int64 `json:"by_kind"`
	ByStore map[string]int64 `json:"by_store"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   int64  `json:"uptime_seconds"`
	Stores   int    `json:"stores"`
	Bindings int    `json:"bindings"`
}
