package store

// Ordering sorts results by one column.
type Ordering struct {
	Column     string
	Descending bool
}

// Query holds the options applied to a read.
type Query struct {
	Order  []Ordering
	Limit  int
	Offset int
}

// QueryOption configures a read.
type QueryOption func(*Query)

// OrderBy appends a sort column; repeated calls add tie breakers.
func OrderBy(column string, descending bool) QueryOption {
	return func(query *Query) {
		query.Order = append(query.Order, Ordering{Column: column, Descending: descending})
	}
}

// Limit caps the number of rows returned. Non-positive values mean no limit.
func Limit(limit int) QueryOption {
	return func(query *Query) {
		query.Limit = limit
	}
}

func Offset(offset int) QueryOption {
	return func(query *Query) {
		query.Offset = offset
	}
}

// BuildQuery folds options into a Query.
func BuildQuery(options ...QueryOption) Query {
	query := Query{}
	for _, option := range options {
		if option != nil {
			option(&query)
		}
	}
	return query
}
