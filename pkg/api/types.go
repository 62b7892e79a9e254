package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ssargent/recordkit/pkg/config"
	"github.com/ssargent/recordkit/pkg/query"
	"github.com/ssargent/recordkit/pkg/recordset"
	"github.com/ssargent/recordkit/pkg/schema"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string
	Paging config.Paging
	// Registry receives the server metrics and is served on /metrics. Nil
	// uses the default Prometheus registry.
	Registry *prometheus.Registry
}

// ViewInfo describes a view
type ViewInfo struct {
	Name   string      `json:"name"`
	Order  string      `json:"order"`
	Fields []FieldInfo `json:"fields"`
}

type FieldInfo struct {
	Name       string `json:"name"`
	Alias      string `json:"alias"`
	Kind       string `json:"kind"`
	Length     int    `json:"length,omitempty"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
}

// RecordsPage is one page of the records of a view
type RecordsPage struct {
	View     string           `json:"view"`
	Criteria string           `json:"criteria"`
	Offset   int64            `json:"offset"`
	Limit    int64            `json:"limit"`
	Total    int64            `json:"total"`
	Records  []*schema.Record `json:"records"`
	Stats    recordset.Stats  `json:"stats"`
}

// QueryRequest selects a page of records. Criteria and Where are joined
// with AND; Where expressions are joined with OR when Or is set.
type QueryRequest struct {
	Criteria *query.Spec `json:"criteria,omitempty"`
	Where    []string    `json:"where,omitempty"`
	Or       bool        `json:"or,omitempty"`
	Offset   int64       `json:"offset"`
	Limit    int64       `json:"limit"`
}

type InsertResponse struct {
	ID string `json:"id"`
}

type CountResponse struct {
	View  string `json:"view"`
	Count int64  `json:"count"`
}

func viewInfo(v *schema.View) ViewInfo {
	info := ViewInfo{Name: v.Name, Order: v.OrderBy.String()}
	for _, f := range v.Fields.Fields() {
		info.Fields = append(info.Fields, FieldInfo{
			Name:       f.Name,
			Alias:      f.Key(),
			Kind:       f.Kind.String(),
			Length:     f.Length,
			Nullable:   f.Nullable,
			PrimaryKey: f.PrimaryKey,
		})
	}
	return info
}
