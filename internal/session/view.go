package session

// View is the projection of the active connection's buffer.
type View struct {
	ActiveID string
	Display  string
	// Version increases on every display change so renderers can skip
	// redundant redraws.
	Version uint64
}

// projector holds the active selection. Callers hold the manager lock.
type projector struct {
	view View
}

func (p *projector) set(id, display string) {
	p.view.ActiveID = id
	p.view.Display = display
	p.view.Version++
}

// refresh recomputes the display when id is the active connection.
func (p *projector) refresh(id, display string) bool {
	if p.view.ActiveID == "" || p.view.ActiveID != id {
		return false
	}
	p.view.Display = display
	p.view.Version++
	return true
}

// clearIf drops the selection when id is active.
func (p *projector) clearIf(id string) bool {
	if p.view.ActiveID != id || id == "" {
		return false
	}
	p.set("", "")
	return true
}
