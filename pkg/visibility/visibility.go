package visibility

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

// Input drives the shared owner-or-sharer checks used by every read path.
type Input struct {
	Resource string
	OwnerID  uuid.UUID
	ViewerID uuid.UUID
	// Shared reports whether a sharing edge from the resource to the viewer exists.
	Shared bool
}

// CanView reports whether the viewer owns the resource or holds a sharing edge to it.
func CanView(input Input) bool {
	if input.ViewerID == uuid.Nil {
		return false
	}
	return input.OwnerID == input.ViewerID || input.Shared
}

// EnsureVisible hides resources the viewer cannot see behind a not-found error so
// their existence never leaks.
func EnsureVisible(input Input) error {
	if CanView(input) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s not found", resourceName(input.Resource)))
}

// EnsureOwner guards operations reserved to the owner (sharing, deletion).
// Sharers get forbidden; strangers get not-found.
func EnsureOwner(input Input) error {
	if input.ViewerID != uuid.Nil && input.OwnerID == input.ViewerID {
		return nil
	}
	if input.Shared {
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("only the owner may modify this %s", resourceName(input.Resource)))
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%s not found", resourceName(input.Resource)))
}

func resourceName(resource string) string {
	if resource == "" {
		return "resource"
	}
	return resource
}
