package fsys

import (
	"os/user"
	"strconv"
)

// OwnerLookup resolves numeric ids to names. Results are cached per
// operation since a tree usually repeats a handful of owners.
type OwnerLookup struct {
	// Numeric disables name resolution entirely (--numeric-owner).
	Numeric bool

	unames map[int64]string
	gnames map[int64]string
}

func NewOwnerLookup(numeric bool) *OwnerLookup {
	return &OwnerLookup{
		Numeric: numeric,
		unames:  map[int64]string{},
		gnames:  map[int64]string{},
	}
}

// Uname returns the user name for uid, or "" when unknown or numeric
// mode is on.
func (o *OwnerLookup) Uname(uid int64) string {
	if o.Numeric {
		return ""
	}

	if name, ok := o.unames[uid]; ok {
		return name
	}

	name := ""
	if u, err := user.LookupId(strconv.FormatInt(uid, 10)); err == nil {
		name = u.Username
	}
	o.unames[uid] = name

	return name
}

// Gname returns the group name for gid, or "" when unknown or numeric
// mode is on.
func (o *OwnerLookup) Gname(gid int64) string {
	if o.Numeric {
		return ""
	}

	if name, ok := o.gnames[gid]; ok {
		return name
	}

	name := ""
	if g, err := user.LookupGroupId(strconv.FormatInt(gid, 10)); err == nil {
		name = g.Name
	}
	o.gnames[gid] = name

	return name
}
