package csvinput

// Row is one CSV data record: an ordered mapping from column name to value.
type Row struct {
	Line    int // Line is the 1-based line the record starts on
	columns []string
	values  []string
}

// NewRow builds a Row from parallel column and value slices. Extra values
// without a column are dropped; missing values read as "".
func NewRow(line int, columns, values []string) *Row {
	vals := make([]string, len(columns))
	copy(vals, values)
	return &Row{
		Line:    line,
		columns: append([]string(nil), columns...),
		values:  vals,
	}
}

// Len is the number of columns.
func (r *Row) Len() int {
	return len(r.columns)
}

// Columns returns the column names in header order.
func (r *Row) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Values returns the values in header order.
func (r *Row) Values() []string {
	return append([]string(nil), r.values...)
}

// Get returns the value of column name, or "" if there is no such column.
func (r *Row) Get(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// Lookup returns the value of column name and whether the column exists.
func (r *Row) Lookup(name string) (string, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return "", false
}

// Has reports whether the row has column name.
func (r *Row) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}
