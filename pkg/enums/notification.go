package enums

import "fmt"

// NotificationCategory tags what a notification is about.
type NotificationCategory string

const (
	NotificationCategoryMeal         NotificationCategory = "meal"
	NotificationCategoryMealPlan     NotificationCategory = "mealplan"
	NotificationCategoryShoppingList NotificationCategory = "shoppinglist"
	NotificationCategoryFriend       NotificationCategory = "friend"
)

var validNotificationCategories = []NotificationCategory{
	NotificationCategoryMeal,
	NotificationCategoryMealPlan,
	NotificationCategoryShoppingList,
	NotificationCategoryFriend,
}

// IsValid checks whether the given category matches the canonical enum.
func (n NotificationCategory) IsValid() bool {
	for _, candidate := range validNotificationCategories {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationCategory converts raw strings into NotificationCategory.
func ParseNotificationCategory(value string) (NotificationCategory, error) {
	for _, candidate := range validNotificationCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification category %q", value)
}
