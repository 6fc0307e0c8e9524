package runtime

import (
	"chat-sessions/domain"
	"chat-sessions/domain/event"
	apperrors "chat-sessions/errors"
	"chat-sessions/mocks"
	"chat-sessions/moderation"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	registry     *Registry
	lifecycle    *mocks.MockIChatLifecycle
	identity     *mocks.MockIIdentityProvider
	users        *mocks.MockIUserRepository
	messages     *mocks.MockIMessageRepository
	search       *mocks.MockISearchIndex
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	require.NoError(t, err)

	f := &orchestratorFixture{
		registry:  NewRegistry(),
		lifecycle: mocks.NewMockIChatLifecycle(ctrl),
		identity:  mocks.NewMockIIdentityProvider(ctrl),
		users:     mocks.NewMockIUserRepository(ctrl),
		messages:  mocks.NewMockIMessageRepository(ctrl),
		search:    mocks.NewMockISearchIndex(ctrl),
	}
	f.orchestrator = NewOrchestrator(slog.Default(), f.registry, f.lifecycle,
		f.identity, f.users, f.messages, f.search, &moderator, time.Hour)
	return f
}

func eventsOf[E event.DomainEvent](sink *Sink) []E {
	var out []E
	for _, e := range sink.Events() {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}

func activeChat() domain.Chat {
	return domain.NewChat()
}

func closedChat() domain.Chat {
	chat := domain.NewChat()
	chat.Status = domain.StatusClosed
	return chat
}

func Test_OpenChat_Creates_Chat_For_Guest(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := activeChat()
	guest := domain.User{ID: "guest-1", IsGuest: true}

	// Given a fresh guest with no prior chat
	f.identity.EXPECT().CreateGuest().Return(guest, "resume-token", nil)
	f.lifecycle.EXPECT().FindOrCreateActiveChatForUser("guest-1").Return(chat, true, nil)
	f.messages.EXPECT().GetMessages(chat.ID, nil).Return(nil, nil, nil)
	f.lifecycle.EXPECT().ActiveChats().
		Return([]domain.ChatSnapshot{{Chat: chat, Participants: []domain.User{guest}}}, nil)

	// When they open a chat
	opened, err := f.orchestrator.OnOpenChat(ctx, conn, sink, "", "")
	req.NoError(err)
	req.Equal(chat.ID, opened.ID)

	// Then the connection is registered for the guest
	userID, ok := f.registry.UserFor(conn)
	req.True(ok)
	req.Equal("guest-1", userID)

	// And the sink got the opening sequence
	openedEvents := eventsOf[event.ChatOpened](sink)
	req.Len(openedEvents, 1)
	req.Equal("resume-token", openedEvents[0].Token)
	req.Len(eventsOf[event.ChatHistory](sink), 1)
	req.Len(eventsOf[event.ActiveChatsUpdated](sink), 1)
}

func Test_OpenChat_Second_Connection_Returns_Same_Chat(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	chat := activeChat()
	alice := domain.User{ID: "alice"}

	f.users.EXPECT().GetUser("alice").Return(alice, nil).AnyTimes()
	f.lifecycle.EXPECT().FindOrCreateActiveChatForUser("alice").Return(chat, true, nil)
	f.lifecycle.EXPECT().FindOrCreateActiveChatForUser("alice").Return(chat, false, nil)
	f.messages.EXPECT().GetMessages(chat.ID, nil).Return(nil, nil, nil).Times(2)
	f.lifecycle.EXPECT().ActiveChats().Return(nil, nil).AnyTimes()

	first, err := f.orchestrator.OnOpenChat(ctx, domain.ConnectionID("tab1"), &Sink{}, "alice", "")
	req.NoError(err)

	// When the same user opens from a second tab
	second, err := f.orchestrator.OnOpenChat(ctx, domain.ConnectionID("tab2"), &Sink{}, "alice", "")
	req.NoError(err)

	// Then no new chat is created
	req.Equal(first.ID, second.ID)
	req.Len(f.registry.ConnectionsFor("alice", chat.ID), 2)
}

func Test_SendMessage_Moderates_And_Broadcasts(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := activeChat()
	alice := domain.User{ID: "alice"}

	f.registry.Register(conn, "alice", chat.ID, sink)
	f.lifecycle.EXPECT().Find(chat.ID).Return(chat, nil)
	f.users.EXPECT().GetUser("alice").Return(alice, nil).AnyTimes()
	f.lifecycle.EXPECT().Participants(chat.ID).Return([]domain.User{alice}, nil)

	var stored domain.Message
	f.messages.EXPECT().StoreMessage(gomock.Any()).
		DoAndReturn(func(m domain.Message) error {
			stored = m
			return nil
		})
	f.search.EXPECT().Index(gomock.Any()).Return(nil)

	// When alice sends a message containing a censored word
	message, err := f.orchestrator.OnSendMessage(ctx, conn, chat.ID, "what a badword day")
	req.NoError(err)

	// Then the stored and broadcast content is masked
	req.Equal("what a ******* day", message.Content)
	req.Equal(message.Content, stored.Content)

	broadcasts := eventsOf[event.NewMessage](sink)
	req.Len(broadcasts, 1)
	req.Equal(message.ID, broadcasts[0].Message.ID)
}

func Test_SendMessage_To_Closed_Chat_Fails_Without_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := closedChat()

	f.registry.Register(conn, "alice", chat.ID, sink)
	f.lifecycle.EXPECT().Find(chat.ID).Return(chat, nil)

	_, err := f.orchestrator.OnSendMessage(ctx, conn, chat.ID, "too late")
	req.ErrorIs(err, apperrors.ErrChatClosed)

	// Then the only event is the failure, reported to the origin
	failures := eventsOf[event.OperationFailed](sink)
	req.Len(failures, 1)
	req.Equal(string(apperrors.KindInvalidState), failures[0].Code)
	req.Empty(eventsOf[event.NewMessage](sink))
}

func Test_SendMessage_From_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	_, err := f.orchestrator.OnSendMessage(context.Background(),
		domain.ConnectionID("ghost"), uuid.New(), "hello")
	req.ErrorIs(err, apperrors.ErrUnknownConnection)
}

func Test_Disconnect_Broadcasts_User_Left_Once(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	chat := activeChat()
	aliceSink1 := &Sink{}
	aliceSink2 := &Sink{}
	bobSink := &Sink{}

	f.registry.Register(domain.ConnectionID("a1"), "alice", chat.ID, aliceSink1)
	f.registry.Register(domain.ConnectionID("a2"), "alice", chat.ID, aliceSink2)
	f.registry.Register(domain.ConnectionID("b1"), "bob", chat.ID, bobSink)

	f.lifecycle.EXPECT().Participants(chat.ID).
		Return([]domain.User{{ID: "alice"}, {ID: "bob"}}, nil).AnyTimes()

	// When alice's first tab disconnects
	f.orchestrator.OnDisconnect(ctx, domain.ConnectionID("a1"))

	// Then nobody is told: alice still has a live connection
	req.Empty(eventsOf[event.UserLeft](bobSink))

	// When her last tab disconnects
	f.orchestrator.OnDisconnect(ctx, domain.ConnectionID("a2"))

	// Then bob hears user_left exactly once
	left := eventsOf[event.UserLeft](bobSink)
	req.Len(left, 1)
	req.Equal("alice", left[0].UserID)
}

func Test_CloseChat_Broadcasts_And_Refreshes_Snapshot(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := activeChat()

	f.registry.Register(conn, "alice", chat.ID, sink)

	closed := chat
	closed.Status = domain.StatusClosed
	f.lifecycle.EXPECT().Close(chat.ID).Return(closed, nil)
	f.lifecycle.EXPECT().Participants(chat.ID).Return([]domain.User{{ID: "alice"}}, nil)
	f.lifecycle.EXPECT().ActiveChats().Return(nil, nil)

	result, err := f.orchestrator.OnCloseChat(ctx, conn, chat.ID)
	req.NoError(err)
	req.True(result.IsClosed())

	req.Len(eventsOf[event.ChatClosed](sink), 1)
	req.Len(eventsOf[event.ActiveChatsUpdated](sink), 1)
}

func Test_CloseChat_Missing_Chat_Reports_Not_Found(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chatID := uuid.New()

	f.registry.Register(conn, "alice", chatID, sink)
	f.lifecycle.EXPECT().Close(chatID).Return(domain.Chat{}, apperrors.ErrChatNotFound)

	_, err := f.orchestrator.OnCloseChat(context.Background(), conn, chatID)
	req.ErrorIs(err, apperrors.ErrChatNotFound)

	failures := eventsOf[event.OperationFailed](sink)
	req.Len(failures, 1)
	req.Equal(string(apperrors.KindNotFound), failures[0].Code)
}

func Test_TypingStart_On_Closed_Chat_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := closedChat()

	f.registry.Register(conn, "alice", chat.ID, sink)
	f.lifecycle.EXPECT().Find(chat.ID).Return(chat, nil)

	err := f.orchestrator.OnTypingStart(context.Background(), conn, chat.ID)
	req.ErrorIs(err, apperrors.ErrChatClosed)
	req.Empty(f.orchestrator.Typing().TypingUsers(chat.ID))
}

func Test_TypingStart_Requires_Registration(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	err := f.orchestrator.OnTypingStart(context.Background(),
		domain.ConnectionID("ghost"), uuid.New())
	req.ErrorIs(err, apperrors.ErrUnknownConnection)
}

func Test_GetActiveChats_Replies_To_Requester_Only(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	requester := &Sink{}
	other := &Sink{}
	chat := activeChat()

	f.registry.Register(domain.ConnectionID("o1"), "bob", chat.ID, other)
	f.lifecycle.EXPECT().ActiveChats().
		Return([]domain.ChatSnapshot{{Chat: chat}}, nil)

	req.NoError(f.orchestrator.OnGetActiveChats(context.Background(), requester))

	req.Len(eventsOf[event.ActiveChatsUpdated](requester), 1)
	req.Empty(other.Events())
}

func Test_SearchMessages_Returns_Hits(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	sink := &Sink{}
	chat := activeChat()
	hit := domain.Message{ID: uuid.New(), ChatID: chat.ID, Content: "hello"}

	f.lifecycle.EXPECT().Find(chat.ID).Return(chat, nil)
	f.search.EXPECT().Search(chat.ID, "hello", searchLimit).Return([]domain.Message{hit}, nil)

	req.NoError(f.orchestrator.OnSearchMessages(context.Background(), sink, chat.ID, "hello"))

	results := eventsOf[event.SearchResults](sink)
	req.Len(results, 1)
	req.Equal([]domain.Message{hit}, results[0].Messages)
}

func Test_Disconnect_Clears_Typing_State(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	conn := domain.ConnectionID("c1")
	sink := &Sink{}
	chat := activeChat()

	f.registry.Register(conn, "alice", chat.ID, sink)
	f.lifecycle.EXPECT().Find(chat.ID).Return(chat, nil)
	f.lifecycle.EXPECT().Participants(chat.ID).Return([]domain.User{{ID: "alice"}}, nil).AnyTimes()

	req.NoError(f.orchestrator.OnTypingStart(ctx, conn, chat.ID))
	req.Equal([]string{"alice"}, f.orchestrator.Typing().TypingUsers(chat.ID))

	f.orchestrator.OnDisconnect(ctx, conn)

	req.Empty(f.orchestrator.Typing().TypingUsers(chat.ID))
}

func Test_JoinChat_ReIdentified_Connection_Announces_Departure(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	ctx := context.Background()
	chat := activeChat()
	guestConn := domain.ConnectionID("guest-tab")
	bobConn := domain.ConnectionID("bob-tab")
	guestSink := &Sink{}
	bobSink := &Sink{}

	// Given guest-1's only connection and bob's own connection in the chat
	f.registry.Register(guestConn, "guest-1", chat.ID, guestSink)
	f.registry.Register(bobConn, "bob", chat.ID, bobSink)

	f.lifecycle.EXPECT().Join(chat.ID, "bob").Return(chat, nil)
	f.users.EXPECT().GetUser("bob").Return(domain.User{ID: "bob"}, nil).AnyTimes()
	f.messages.EXPECT().GetMessages(chat.ID, nil).Return(nil, nil, nil)
	f.lifecycle.EXPECT().Participants(chat.ID).
		Return([]domain.User{{ID: "guest-1"}, {ID: "bob"}}, nil).AnyTimes()
	f.lifecycle.EXPECT().ActiveChats().Return(nil, nil).AnyTimes()

	// When guest-1's connection joins the chat as bob
	_, err := f.orchestrator.OnJoinChat(ctx, guestConn, guestSink, chat.ID, "bob")
	req.NoError(err)

	// Then guest-1 holds no connection anymore and the chat hears exactly
	// one departure for them
	req.Empty(f.registry.ConnectionsFor("guest-1", chat.ID))
	left := eventsOf[event.UserLeft](bobSink)
	req.Len(left, 1)
	req.Equal("guest-1", left[0].UserID)
}
