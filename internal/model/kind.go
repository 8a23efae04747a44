package model

// Kind identifies one synchronized entity collection.
type Kind string

const (
	KindProperties    Kind = "properties"
	KindSales         Kind = "sales"
	KindGoals         Kind = "goals"
	KindMemos         Kind = "memos"
	KindTodos         Kind = "todos"
	KindNotifications Kind = "notifications"
)

// Kinds lists every collection kind in snapshot order.
var Kinds = []Kind{
	KindProperties,
	KindSales,
	KindGoals,
	KindMemos,
	KindTodos,
	KindNotifications,
}

// TombstonedKinds are the kinds whose records are soft-deleted by users and
// therefore participate in retention cleanup. Notifications and goals are
// replaced wholesale and never tombstoned by the UI.
var TombstonedKinds = []Kind{
	KindProperties,
	KindSales,
	KindMemos,
	KindTodos,
}

// StorageKey returns the durable key holding the kind's full collection.
func (k Kind) StorageKey() string {
	return "estate_" + string(k)
}

// Valid reports whether k names a known collection.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Sale attribute keys used by the property-deletion cascade: a sale holds a
// soft reference to a property; deleting the property clears the reference
// instead of cascading the delete.
const (
	AttrPropertyID      = "propertyId"
	AttrPropertyDeleted = "propertyDeleted"
)

// NotificationRetention caps the notifications collection: only the most
// recent entries are kept on insert.
const NotificationRetention = 100
