package enums

// EventName identifies the resource a realtime event describes.
type EventName string

const (
	EventShoppingListItem  EventName = "shopping_list_item"
	EventShoppingListItems EventName = "shopping_list_items"
	EventShoppingList      EventName = "shopping_list"
	EventNotification      EventName = "notification"
)
