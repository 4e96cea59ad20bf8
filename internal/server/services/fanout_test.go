package services

import (
	"context"
	"sort"
	"testing"

	"github.com/dmitrijs2005/spaceshare/internal/server/models"
)

type fanoutFixture struct {
	store      *memStore
	repos      *fakeRepoManager
	chatSink   *fakeChatSink
	pushSink   *fakePushSink
	dispatcher *FanoutDispatcher
}

func newFanoutFixture(t *testing.T) *fanoutFixture {
	t.Helper()
	store := newMemStore()
	repos := newFakeRepoManager(store)
	chatSink := &fakeChatSink{}
	pushSink := &fakePushSink{}
	d := NewFanoutDispatcher(openTestDB(t), repos, repos.groupRepo, chatSink, pushSink, nopLogger{})
	return &fanoutFixture{store: store, repos: repos, chatSink: chatSink, pushSink: pushSink, dispatcher: d}
}

func readyPost(author string, groupIDs ...string) *models.Entity {
	return &models.Entity{
		ID:                 "e1",
		Kind:               models.EntityKindPost,
		AuthorID:           &author,
		DeclaredMediaCount: 1,
		Pending:            false,
		GroupIDs:           groupIDs,
	}
}

func TestEntityReady_FullFanout(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author", "u1", "u2"}
	f.store.members["g2"] = []string{"u2", "u3"}
	f.store.tokens["u1"] = []string{"tok1a", "tok1b"}
	f.store.tokens["u3"] = []string{"tok3"}

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1", "g2"))

	if len(f.store.notifications) != 1 {
		t.Fatalf("want one persisted notification, got %d", len(f.store.notifications))
	}
	n := f.store.notifications[0]
	if n.Kind != models.NotificationKindPost || n.AuthorID != "author" || n.EntityID != "e1" {
		t.Fatalf("unexpected notification: %+v", n)
	}

	targets := append([]string(nil), f.store.targets[n.ID]...)
	sort.Strings(targets)
	want := []string{"u1", "u2", "u3"}
	if len(targets) != len(want) {
		t.Fatalf("audience must exclude the author and dedupe across groups: %v", targets)
	}
	for i := range want {
		if targets[i] != want[i] {
			t.Fatalf("unexpected audience: %v", targets)
		}
	}

	if len(f.pushSink.sent) != 3 {
		t.Fatalf("want one push per registered token, got %d", len(f.pushSink.sent))
	}

	if len(f.chatSink.messages) != 2 {
		t.Fatalf("want one chat message per group, got %d", len(f.chatSink.messages))
	}
	for _, msg := range f.chatSink.messages {
		if msg.CustomType != "new_post" || msg.Text != "" || msg.EntityID != "e1" {
			t.Fatalf("unexpected chat message: %+v", msg)
		}
	}
}

func TestEntityReady_StoryIsSilent(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author", "u1"}

	story := readyPost("author", "g1")
	story.Kind = models.EntityKindStory

	f.dispatcher.EntityReady(context.Background(), story)

	if len(f.store.notifications) != 0 || len(f.pushSink.sent) != 0 || len(f.chatSink.messages) != 0 {
		t.Fatal("story readiness must produce no fanout")
	}
}

func TestEntityReady_OwnerlessEntityIsSilent(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"u1"}

	e := readyPost("ignored", "g1")
	e.AuthorID = nil

	f.dispatcher.EntityReady(context.Background(), e)

	if len(f.store.notifications) != 0 || len(f.chatSink.messages) != 0 {
		t.Fatal("ownerless entity must produce no fanout")
	}
}

func TestEntityReady_EmptyAudiencePersistsNothing(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author"}

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1"))

	if len(f.store.notifications) != 0 {
		t.Fatal("no notification expected for an empty audience")
	}
	if len(f.chatSink.messages) != 1 {
		t.Fatalf("chat announcement still expected, got %d", len(f.chatSink.messages))
	}
}

func TestEntityReady_ChatFailureIsolatedPerGroup(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author", "u1"}
	f.store.members["g2"] = []string{"author", "u1"}
	f.chatSink.failFor = map[string]error{"g1": errBoom}

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1", "g2"))

	if len(f.chatSink.messages) != 1 || f.chatSink.messages[0].GroupID != "g2" {
		t.Fatalf("delivery to the healthy group must proceed: %+v", f.chatSink.messages)
	}
}

func TestEntityReady_PushFailureIsNonFatal(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author", "u1"}
	f.store.tokens["u1"] = []string{"tok1"}
	f.pushSink.err = errBoom

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1"))

	if len(f.store.notifications) != 1 {
		t.Fatalf("notification must persist despite push failure, got %d", len(f.store.notifications))
	}
	if len(f.chatSink.messages) != 1 {
		t.Fatalf("chat must proceed despite push failure, got %d", len(f.chatSink.messages))
	}
}

func TestEntityReady_NotificationFailureDoesNotBlockOtherChannels(t *testing.T) {
	f := newFanoutFixture(t)
	f.store.members["g1"] = []string{"author", "u1"}
	f.store.tokens["u1"] = []string{"tok1"}
	f.repos.notificationRepo.createErr = errBoom

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1"))

	if len(f.store.notifications) != 0 {
		t.Fatal("notification should not have persisted")
	}
	if len(f.pushSink.sent) != 1 {
		t.Fatalf("push must proceed despite persist failure, got %d", len(f.pushSink.sent))
	}
	if len(f.chatSink.messages) != 1 {
		t.Fatalf("chat must proceed despite persist failure, got %d", len(f.chatSink.messages))
	}
}

func TestEntityReady_MemberLookupFailureSkipsGroup(t *testing.T) {
	f := newFanoutFixture(t)
	f.repos.groupRepo.membersErr = errBoom
	f.store.tokens["u1"] = []string{"tok1"}

	f.dispatcher.EntityReady(context.Background(), readyPost("author", "g1"))

	if len(f.store.notifications) != 0 || len(f.pushSink.sent) != 0 {
		t.Fatal("no audience should resolve when member lookup fails")
	}
	if len(f.chatSink.messages) != 1 {
		t.Fatalf("chat announcement is independent of audience resolution, got %d", len(f.chatSink.messages))
	}
}
