package command

import (
	"gatekeeper/internal/types"
)

// IDTable is the ephemeral id→MAC mapping behind listing commands. Each
// listing kind (approved, denied) keeps the order of its most recent listing;
// IDs are sequential from 1 in that order. A new listing of the same kind
// overwrites the previous mapping; IDs from the old one are rejected rather
// than silently reused.
type IDTable struct {
	kinds map[types.Set][]string
}

func NewIDTable() *IDTable {
	return &IDTable{kinds: make(map[types.Set][]string)}
}

func (t *IDTable) Replace(kind types.Set, macs []string) {
	t.kinds[kind] = macs
}

// Resolve maps an ID back to the MAC of the latest listing of kind.
func (t *IDTable) Resolve(kind types.Set, id int) (string, error) {
	macs := t.kinds[kind]
	if id < 1 || id > len(macs) {
		return "", types.Err(types.ErrNotFound, nil, "no entry %d in the last %s listing", id, kind)
	}
	return macs[id-1], nil
}
