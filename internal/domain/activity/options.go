package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	PhotoID      *int64
	BatchID      string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
