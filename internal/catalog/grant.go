package catalog

import (
	"sync"

	"ponydb/internal/txn"
)

// PublicGrantee is the pseudo-user every lookup also checks (spec §4.J:
// "merges grants addressed to the user with grants addressed to @PUBLIC").
const PublicGrantee = "@PUBLIC"

// GrantRow is one row of SYS_GRANTS: (privilege_bits, object_type, param,
// grantee, grant_option_flag, granter) per spec §4.J.
type GrantRow struct {
	PrivilegeBits uint32
	ObjectType    string
	Param         string
	Grantee       string
	GrantOption   bool
	Granter       string
}

type resultKey struct {
	objectType string
	param      string
	user       string
	flags      uint32
}

// GrantManager answers privilege lookups against SYS_GRANTS, keeping a
// small result cache keyed by (object, param, user, flags) so repeated
// checks for the same requested privilege bits skip re-scanning the grant
// list (spec §4.J).
type GrantManager struct {
	cache *TableBackedCache[GrantRow]

	resultMu sync.Mutex
	results  map[resultKey]bool
}

// NewGrantManager attaches to cg's commit stream for the SYS_GRANTS table.
func NewGrantManager(cg *txn.Conglomerate, sysGrantsTableID int64, load func() ([]GrantRow, error)) *GrantManager {
	gm := &GrantManager{
		cache:   NewTableBackedCache(cg, sysGrantsTableID, load),
		results: map[resultKey]bool{},
	}
	gm.cache.OnInvalidate(gm.clearResults)
	return gm
}

func (gm *GrantManager) clearResults() {
	gm.resultMu.Lock()
	gm.results = map[resultKey]bool{}
	gm.resultMu.Unlock()
}

// NoteOwnWrite should be called by whoever writes SYS_GRANTS through this
// manager's own connection, before commit.
func (gm *GrantManager) NoteOwnWrite() { gm.cache.NoteOwnWrite() }

// privilegeBits merges every grant row addressed to user or @PUBLIC for
// (objectType, param) into one bitset.
func (gm *GrantManager) privilegeBits(objectType, param, user string) (uint32, error) {
	rows, err := gm.cache.Items()
	if err != nil {
		return 0, err
	}
	var bits uint32
	for _, r := range rows {
		if r.ObjectType != objectType || r.Param != param {
			continue
		}
		if r.Grantee == user || r.Grantee == PublicGrantee {
			bits |= r.PrivilegeBits
		}
	}
	return bits, nil
}

// HasPrivilege reports whether user holds every bit of flags on
// (objectType, param), merging @PUBLIC grants, with a cached result keyed
// on the exact query shape.
func (gm *GrantManager) HasPrivilege(objectType, param, user string, flags uint32) (bool, error) {
	key := resultKey{objectType: objectType, param: param, user: user, flags: flags}
	gm.resultMu.Lock()
	if v, ok := gm.results[key]; ok {
		gm.resultMu.Unlock()
		return v, nil
	}
	gm.resultMu.Unlock()

	bits, err := gm.privilegeBits(objectType, param, user)
	if err != nil {
		return false, err
	}
	ok := bits&flags == flags

	gm.resultMu.Lock()
	gm.results[key] = ok
	gm.resultMu.Unlock()
	return ok, nil
}

// CanGrant reports whether user may grant flags on (objectType, param) to
// others: it must hold those bits with the grant-option flag set on at
// least one covering grant row.
func (gm *GrantManager) CanGrant(objectType, param, user string, flags uint32) (bool, error) {
	rows, err := gm.cache.Items()
	if err != nil {
		return false, err
	}
	var bits uint32
	for _, r := range rows {
		if r.ObjectType != objectType || r.Param != param || !r.GrantOption {
			continue
		}
		if r.Grantee == user || r.Grantee == PublicGrantee {
			bits |= r.PrivilegeBits
		}
	}
	return bits&flags == flags, nil
}
