package apisix

import (
	"encoding/json"
	"net/url"
	"sort"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/fivetwenty-io/apisix-client/internal/constants"
)

// Entity is one gateway configuration object (route, upstream, certificate, ...).
// The core treats it as an opaque map and only interprets identity and a few
// server-managed fields.
type Entity map[string]interface{}

// ID returns the entity identifier as a string, or "" if absent.
func (e Entity) ID() string {
	return e.stringField(constants.FieldID)
}

// IdentityValue returns the value of the given identity field as a string.
func (e Entity) IdentityValue(field string) string {
	return e.stringField(field)
}

func (e Entity) stringField(field string) string {
	raw, ok := e[field]
	if !ok || raw == nil {
		return ""
	}

	switch value := raw.(type) {
	case string:
		return value
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case uint64:
		return strconv.FormatUint(value, 10)
	default:
		return ""
	}
}

// Copy returns a shallow copy of the entity.
func (e Entity) Copy() Entity {
	out := make(Entity, len(e))
	for key, value := range e {
		out[key] = value
	}

	return out
}

// Without returns a shallow copy with the given fields removed.
func (e Entity) Without(fields ...string) Entity {
	out := e.Copy()
	for _, field := range fields {
		delete(out, field)
	}

	return out
}

// Merge returns a shallow copy of e with every top-level field of overlay written over it.
func (e Entity) Merge(overlay Entity) Entity {
	out := e.Copy()
	for key, value := range overlay {
		out[key] = value
	}

	return out
}

// ResponseFormat identifies the envelope family a server uses.
type ResponseFormat string

const (
	// ResponseFormatLegacy is the 2.x etcd-style node envelope.
	ResponseFormatLegacy ResponseFormat = "legacy"

	// ResponseFormatWrapped is the 3.x key/value and list/total envelope.
	ResponseFormatWrapped ResponseFormat = "wrapped"
)

// CapabilitySet is the resolved feature profile of one server. It is never
// mutated after the resolver publishes it.
type CapabilitySet struct {
	MajorVersion         string         `json:"major_version"          yaml:"major_version"`
	ResponseFormat       ResponseFormat `json:"response_format"        yaml:"response_format"`
	SupportsPagination   bool           `json:"supports_pagination"    yaml:"supports_pagination"`
	SupportsCredentials  bool           `json:"supports_credentials"   yaml:"supports_credentials"`
	SupportsSecrets      bool           `json:"supports_secrets"       yaml:"supports_secrets"`
	SupportsStreamRoutes bool           `json:"supports_stream_routes" yaml:"supports_stream_routes"`

	plugins mapset.Set[string]
}

// ConservativeCapabilities is the fallback profile used whenever detection fails.
func ConservativeCapabilities() CapabilitySet {
	return CapabilitySet{
		MajorVersion:   constants.MajorVersionLegacy,
		ResponseFormat: ResponseFormatLegacy,
	}
}

// WithPlugins returns a copy of the set that reports the given plugins as supported.
func (c CapabilitySet) WithPlugins(names ...string) CapabilitySet {
	plugins := mapset.NewThreadUnsafeSet[string]()
	if c.plugins != nil {
		plugins = c.plugins.Clone()
	}

	for _, name := range names {
		plugins.Add(name)
	}

	c.plugins = plugins

	return c
}

// SupportsPlugin reports whether the server advertised the named plugin.
func (c CapabilitySet) SupportsPlugin(name string) bool {
	return c.plugins != nil && c.plugins.Contains(name)
}

// SupportedPlugins returns the advertised plugin names in sorted order.
func (c CapabilitySet) SupportedPlugins() []string {
	if c.plugins == nil {
		return []string{}
	}

	names := c.plugins.ToSlice()
	sort.Strings(names)

	return names
}

// QueryParams holds list options. Page and PageSize are only forwarded to
// servers that support pagination.
type QueryParams struct {
	Page     int
	PageSize int
	Filters  map[string]string
}

// NewQueryParams creates empty query parameters.
func NewQueryParams() *QueryParams {
	return &QueryParams{
		Filters: make(map[string]string),
	}
}

// WithPage sets the page number.
func (q *QueryParams) WithPage(page int) *QueryParams {
	q.Page = page

	return q
}

// WithPageSize sets the page size.
func (q *QueryParams) WithPageSize(pageSize int) *QueryParams {
	q.PageSize = pageSize

	return q
}

// WithFilter adds a filter such as name, label or uri.
func (q *QueryParams) WithFilter(key, value string) *QueryParams {
	if q.Filters == nil {
		q.Filters = make(map[string]string)
	}

	q.Filters[key] = value

	return q
}

// HasPaging reports whether any pagination parameter is set.
func (q *QueryParams) HasPaging() bool {
	return q != nil && (q.Page > 0 || q.PageSize > 0)
}

// WithoutPaging returns a copy with pagination parameters cleared.
func (q *QueryParams) WithoutPaging() *QueryParams {
	if q == nil {
		return nil
	}

	out := &QueryParams{Filters: make(map[string]string, len(q.Filters))}
	for key, value := range q.Filters {
		out.Filters[key] = value
	}

	return out
}

// ToValues converts the parameters to url.Values.
func (q *QueryParams) ToValues() url.Values {
	values := url.Values{}
	if q == nil {
		return values
	}

	if q.Page > 0 {
		values.Set(constants.QueryPage, strconv.Itoa(q.Page))
	}

	if q.PageSize > 0 {
		values.Set(constants.QueryPageSize, strconv.Itoa(q.PageSize))
	}

	for key, value := range q.Filters {
		values.Set(key, value)
	}

	return values
}

// PaginatedList is the uniform paginated result. It has the same shape whether
// or not the server paginates. Page and PageSize are the values sent; when the
// whole collection is returned they are 1 and the collection length.
type PaginatedList struct {
	Items    []Entity `json:"items"     yaml:"items"`
	Total    int      `json:"total"     yaml:"total"`
	Page     int      `json:"page"      yaml:"page"`
	PageSize int      `json:"page_size" yaml:"page_size"`
	HasMore  bool     `json:"has_more"  yaml:"has_more"`
}
