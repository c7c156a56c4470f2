package domain

// Member is the membership of one connection. It is a value: the registry
// replaces it whole, it is never patched field by field.
type Member struct {
	User UserID
	Room RoomID
	// Seq orders members by their first join and survives room switches.
	Seq uint64
}
