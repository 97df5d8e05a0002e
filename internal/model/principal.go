package model

// Principal is the already-authenticated caller identity supplied per
// request by the upstream auth gateway. A nil *Principal means the
// request is anonymous.
type Principal struct {
	ID     int64  `json:"id"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// ActorID returns the principal id as an optional actor reference for
// history entries, nil for an anonymous caller.
func (p *Principal) ActorID() *int64 {
	if p == nil {
		return nil
	}
	id := p.ID
	return &id
}
