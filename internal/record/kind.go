package record

import "fmt"

// Kind tags a record type. It doubles as the table name in the stores.
type Kind string

const (
	KindContact  Kind = "contacts"
	KindHoliday  Kind = "holidays"
	KindCard     Kind = "card_history"
	KindCongrats Kind = "congrats_history"
)

// Kinds lists every record type in dependency order: owners before the
// history items that reference them.
var Kinds = []Kind{KindContact, KindHoliday, KindCard, KindCongrats}

// ParseKind resolves a kind from its tag.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown record kind %q", s)
}

// New returns an empty record of the given kind.
func New(k Kind) (Record, error) {
	switch k {
	case KindContact:
		return &Contact{}, nil
	case KindHoliday:
		return &Holiday{}, nil
	case KindCard:
		return &CardHistoryItem{}, nil
	case KindCongrats:
		return &CongratsHistoryItem{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", k)
	}
}

// Owned is implemented by record kinds that may point at a contact or a holiday.
type Owned interface {
	Record
	Owners() (contactID, holidayID string)
	SetOwners(contactID, holidayID string)
}
