package cms

// NamingStrategy decides how generated list keys are spelled for a given
// storage backend. Some backends reject identifiers that start with an
// underscore, so they get a letter prefix instead.
type NamingStrategy int

const (
	NamingDefault NamingStrategy = iota
	NamingPrefixed
)

func (n NamingStrategy) String() string {
	switch n {
	case NamingPrefixed:
		return "prefixed"
	default:
		return "default"
	}
}

// AuxListKey builds the key of an auxiliary list owned by a block of
// blockType that is embedded in fromList.
func (n NamingStrategy) AuxListKey(fromList, blockType string) string {
	if n == NamingPrefixed {
		return "KS_Block_" + fromList + "_" + blockType
	}
	return "_Block_" + fromList + "_" + blockType
}
