package core

// DBOrdering is an engine-neutral ORDER BY term. Descending is the zero
// value because the list views in this app are newest first.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
