package controllers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/mealshare-backend/internal/friends"
	"github.com/angelmondragon/mealshare-backend/internal/sharing"
	"github.com/angelmondragon/mealshare-backend/internal/users"
	pkgerrors "github.com/angelmondragon/mealshare-backend/pkg/errors"
)

type stubFriendsService struct {
	friends.Service
	accepted    bool
	sendErr     error
	lastName    string
	acceptedErr error
}

func (s *stubFriendsService) SendRequest(ctx context.Context, fromID uuid.UUID, toUsername string) (*friends.SendResult, error) {
	s.lastName = toUsername
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &friends.SendResult{UserID: uuid.New(), Accepted: s.accepted}, nil
}

func (s *stubFriendsService) AcceptRequest(ctx context.Context, userID, fromID uuid.UUID) error {
	return s.acceptedErr
}

func TestSendFriendRequestStatuses(t *testing.T) {
	tests := []struct {
		name     string
		svc      *stubFriendsService
		wantCode int
	}{
		{"pending", &stubFriendsService{}, http.StatusCreated},
		{"crossing request accepted", &stubFriendsService{accepted: true}, http.StatusOK},
		{"unknown user", &stubFriendsService{sendErr: pkgerrors.NotFoundf("user not found")}, http.StatusNotFound},
		{"already friends", &stubFriendsService{sendErr: pkgerrors.Conflictf("already friends")}, http.StatusConflict},
	}

	for _, tt := range tests {
		req := authedRequest(http.MethodPost, "/api/v1/friends/requests", bytes.NewBufferString(`{"username":"bob"}`), uuid.New(), nil)
		rec := httptest.NewRecorder()
		SendFriendRequest(tt.svc, nil).ServeHTTP(rec, req)
		if rec.Code != tt.wantCode {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.wantCode, rec.Code)
		}
		if tt.svc.lastName != "bob" {
			t.Fatalf("%s: expected username forwarded got %q", tt.name, tt.svc.lastName)
		}
	}
}

func TestAcceptFriendRequestWithoutPendingIsStateConflict(t *testing.T) {
	svc := &stubFriendsService{acceptedErr: pkgerrors.Statef("no pending friend request")}
	req := authedRequest(http.MethodPost, "/", nil, uuid.New(), map[string]string{"userId": uuid.NewString()})
	rec := httptest.NewRecorder()

	AcceptFriendRequest(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

type stubShareService struct {
	ShareService
	calls []string
	err   error
}

func (s *stubShareService) ShareMeal(ctx context.Context, actorID, mealID uuid.UUID, username string) error {
	s.calls = append(s.calls, "meal:"+username)
	return s.err
}

func (s *stubShareService) ShareMealPlan(ctx context.Context, actorID, planID uuid.UUID, username string) error {
	s.calls = append(s.calls, "plan:"+username)
	return s.err
}

func (s *stubShareService) UnshareShoppingList(ctx context.Context, actorID, listID uuid.UUID, username string) error {
	s.calls = append(s.calls, "unshare-list:"+username)
	return s.err
}

func (s *stubShareService) Sharers(ctx context.Context, kind sharing.Kind, viewerID, resourceID uuid.UUID) ([]users.PublicUserDTO, error) {
	return []users.PublicUserDTO{{ID: uuid.New(), Username: "bob"}}, nil
}

func TestShareResourceDispatchesByKind(t *testing.T) {
	svc := &stubShareService{}
	body := func() *bytes.Buffer { return bytes.NewBufferString(`{"username":"bob"}`) }

	rec := httptest.NewRecorder()
	ShareResource(svc, sharing.KindMeal, "mealId", nil).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/", body(), uuid.New(), map[string]string{"mealId": uuid.NewString()}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ShareResource(svc, sharing.KindMealPlan, "planId", nil).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/", body(), uuid.New(), map[string]string{"planId": uuid.NewString()}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}

	if len(svc.calls) != 2 || svc.calls[0] != "meal:bob" || svc.calls[1] != "plan:bob" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}

func TestShareResourceToNonFriendIsForbidden(t *testing.T) {
	svc := &stubShareService{err: pkgerrors.New(pkgerrors.CodeForbidden, "can only share with friends")}
	rec := httptest.NewRecorder()
	ShareResource(svc, sharing.KindMeal, "mealId", nil).ServeHTTP(rec,
		authedRequest(http.MethodPost, "/", bytes.NewBufferString(`{"username":"eve"}`), uuid.New(), map[string]string{"mealId": uuid.NewString()}))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestUnshareResourceReadsUsernameFromPath(t *testing.T) {
	svc := &stubShareService{}
	params := map[string]string{"listId": uuid.NewString(), "username": "bob"}
	rec := httptest.NewRecorder()
	UnshareResource(svc, sharing.KindShoppingList, "listId", nil).ServeHTTP(rec,
		authedRequest(http.MethodDelete, "/", nil, uuid.New(), params))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "unshare-list:bob" {
		t.Fatalf("unexpected calls %v", svc.calls)
	}
}

func TestListSharers(t *testing.T) {
	rec := httptest.NewRecorder()
	ListSharers(&stubShareService{}, sharing.KindMeal, "mealId", nil).ServeHTTP(rec,
		authedRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"mealId": uuid.NewString()}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"username":"bob"`)) {
		t.Fatalf("expected sharer in body: %s", rec.Body.String())
	}
}
