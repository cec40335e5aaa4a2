package models

// SnapshotMessage is the frame pushed to live dashboard clients. Every frame
// carries the whole collection, ordered by creation time descending.
type SnapshotMessage struct {
	Type      string     `json:"type"` // "snapshot", "error"
	Version   int64      `json:"version"`
	Incidents []Incident `json:"incidents"`
}

// Tenant is the identity a tenant supplies with a submission.
type Tenant struct {
	Name string `json:"name"`
	Room string `json:"room"`
}
