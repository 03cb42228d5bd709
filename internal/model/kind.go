package model

import "fmt"

// Kind identifies one crawl stream. Each kind owns its checkpoint namespace and
// its destination table; kinds never share state.
type Kind string

const (
	KindOutbound Kind = "outbound"
	KindInbound  Kind = "inbound"
	KindTRC20    Kind = "trc20"
)

// AccountRole says which column holds the tracked account in a kind's table.
type AccountRole string

const (
	RoleFrom AccountRole = "from"
	RoleTo   AccountRole = "to"
	RoleAny  AccountRole = "any"
)

var AllKinds = []Kind{KindOutbound, KindInbound, KindTRC20}

// CheckpointNamespace is the key prefix used by the watermark cache. The names
// predate this service and existing cache entries depend on them.
func (k Kind) CheckpointNamespace() string {
	switch k {
	case KindOutbound:
		return "from_latest_ts"
	case KindInbound:
		return "to_latest_ts"
	case KindTRC20:
		return "trc20_latest_ts"
	default:
		return string(k) + "_latest_ts"
	}
}

func (k Kind) Table() string {
	switch k {
	case KindOutbound:
		return "from_transaction"
	case KindInbound:
		return "normal_transaction"
	case KindTRC20:
		return "trc20_transfer"
	default:
		return ""
	}
}

func (k Kind) AccountRole() AccountRole {
	switch k {
	case KindOutbound:
		return RoleFrom
	case KindInbound:
		return RoleTo
	default:
		return RoleAny
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindOutbound, KindInbound, KindTRC20:
		return true
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown crawl kind %q", s)
	}
	return k, nil
}

// CheckpointKey formats the "{namespace}:{account}" watermark key.
func CheckpointKey(kind Kind, account string) string {
	return kind.CheckpointNamespace() + ":" + account
}
