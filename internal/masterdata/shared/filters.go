package shared

// ListFilters captures common master data listing options.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	Kind     string
	IsActive *bool
	SortBy   string
	SortDir  string
}
