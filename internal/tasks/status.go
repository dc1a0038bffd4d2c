package tasks

type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusUploaded   Status = "uploaded"
	StatusAligned    Status = "aligned" // queued for alignment
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// forward lists the happy-path edges. processing → uploaded is the one
// backward edge: a cancelled in-flight alignment resets the task so it
// stays eligible for a later retry.
var transitions = map[Status][]Status{
	StatusPending:    {StatusUploading, StatusFailed, StatusCancelled},
	StatusUploading:  {StatusUploaded, StatusFailed, StatusCancelled},
	StatusUploaded:   {StatusAligned, StatusFailed, StatusCancelled, StatusExpired},
	StatusAligned:    {StatusProcessing, StatusUploaded, StatusFailed, StatusCancelled, StatusExpired},
	StatusProcessing: {StatusCompleted, StatusFailed, StatusUploaded, StatusCancelled},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusExpired:    {},
}

// CanTransition reports whether moving a task from one status to
// another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}
