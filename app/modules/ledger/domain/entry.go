package ledgerdomain

// Source identifies how a ledger entry was created.
type Source string

const (
	SourceManual Source = "manual"
	SourceBulk   Source = "bulk"
)

// Totals are a player's accumulators.
type Totals struct {
	Lifetime int `json:"lifetime"`
	Season   int `json:"season"`
}

// AssignedRow is a bulk row that produced a ledger entry.
type AssignedRow struct {
	Nick     string `json:"nick"`
	Points   int    `json:"points"`
	Position int    `json:"position"`
}

// FailedRow is a bulk row that hit an infrastructure error.
type FailedRow struct {
	Nick   string `json:"nick"`
	Reason string `json:"reason"`
}

// BulkReport is the outcome of a bulk award. Assigned, NotFound, Already and Failed are disjoint.
// Rows whose position is worth no points appear in none of them.
type BulkReport struct {
	EventID  int64         `json:"event_id"`
	BatchID  string        `json:"batch_id"`
	Assigned []AssignedRow `json:"assigned"`
	NotFound []string      `json:"not_found"`
	Already  []string      `json:"already"`
	Failed   []FailedRow   `json:"failed,omitempty"`
}

// NewBulkReport returns a report with empty, non-nil lists so it serializes as [] rather than null.
func NewBulkReport(eventID int64, batchID string) *BulkReport {
	return &BulkReport{
		EventID:  eventID,
		BatchID:  batchID,
		Assigned: []AssignedRow{},
		NotFound: []string{},
		Already:  []string{},
	}
}

// TotalAssigned sums the points of every assigned row.
func (r *BulkReport) TotalAssigned() int {
	total := 0
	for _, a := range r.Assigned {
		total += a.Points
	}
	return total
}
