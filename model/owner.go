package model

// Owner is either Anonymous or Owned(username). The zero value is Anonymous.
type Owner struct {
	username string
	owned    bool
}

func Anonymous() Owner {
	return Owner{}
}

// Owned returns an owner for username; an empty name is treated as Anonymous.
func Owned(username string) Owner {
	if username == "" {
		return Anonymous()
	}
	return Owner{username: username, owned: true}
}

func (o Owner) IsAnonymous() bool {
	return !o.owned
}

// Username returns the owner name and whether the link is owned.
func (o Owner) Username() (string, bool) {
	return o.username, o.owned
}

// Is reports whether caller is exactly this owner. Anonymous links match nobody.
func (o Owner) Is(caller string) bool {
	return o.owned && caller != "" && o.username == caller
}

func (o Owner) String() string {
	if !o.owned {
		return "anonymous"
	}
	return o.username
}
