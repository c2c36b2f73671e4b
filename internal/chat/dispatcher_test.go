package chat

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDispatcher() *Dispatcher {
	return NewDispatcher(slog.New(slog.DiscardHandler))
}

func TestDispatcher_BroadcastReachesOnlyThatRoom(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	a1, a2, b1 := newFakeConn("a1"), newFakeConn("a2"), newFakeConn("b1")
	d.Register("a", a1)
	d.Register("a", a2)
	d.Register("b", b1)

	delivered := d.BroadcastToRoom("a", Event{Name: EventCode, Data: CodeBroadcast{Code: "x", Sender: "alice"}})

	req.Equal(2, delivered)
	req.Len(a1.named(EventCode), 1)
	req.Len(a2.named(EventCode), 1)
	req.Empty(b1.all())
}

func TestDispatcher_SendToConnection(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	a1, a2 := newFakeConn("a1"), newFakeConn("a2")
	d.Register("a", a1)
	d.Register("a", a2)

	req.True(d.SendToConnection("a2", fontEvent(FontChange{User: "bob", Font: "Courier"})))
	req.False(d.SendToConnection("nobody", fontEvent(FontChange{User: "bob", Font: "Courier"})))

	req.Empty(a1.all())
	got := decodeAll[FontChange](t, a2.named(EventFontChange))
	req.Equal([]FontChange{{User: "bob", Font: "Courier"}}, got)
}

func TestDispatcher_UnregisteredConnectionGetsNothing(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	conn := newFakeConn("c")
	d.Register("a", conn)

	req.True(d.Unregister(conn))
	req.False(d.Unregister(conn))
	req.Equal(0, d.BroadcastToRoom("a", chatEvent(Message{Name: "x", Message: "y"})))
	req.Empty(conn.all())
	req.Equal(0, d.Count("a"))
}

func TestDispatcher_FullBufferClosesConnection(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	slow := newFakeConn("slow")
	slow.capacity = 1
	fast := newFakeConn("fast")
	d.Register("a", slow)
	d.Register("a", fast)

	d.BroadcastToRoom("a", chatEvent(Message{Name: "x", Message: "1"}))
	delivered := d.BroadcastToRoom("a", chatEvent(Message{Name: "x", Message: "2"}))

	req.Equal(1, delivered)
	req.True(slow.isClosed())
	req.False(fast.isClosed())
	req.Len(fast.all(), 2)
}

func TestDispatcher_ReplacingSessionClosesPreviousConnection(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	first, second := newFakeConn("same"), newFakeConn("same")
	d.Register("a", first)
	d.Register("a", second)

	req.True(first.isClosed())
	req.Equal(1, d.Count("a"))
	req.False(d.Unregister(first))
	req.True(d.Unregister(second))
}

func TestDispatcher_PreservesOrderPerSender(t *testing.T) {
	req := require.New(t)
	d := newTestDispatcher()
	conn := newFakeConn("c")
	d.Register("a", conn)

	for _, text := range []string{"one", "two", "three"} {
		d.BroadcastToRoom("a", chatEvent(Message{Name: "alice", Message: text}))
	}

	got := decodeAll[Message](t, conn.named(EventMessage))
	req.Len(got, 3)
	req.Equal([]string{"one", "two", "three"}, []string{got[0].Message, got[1].Message, got[2].Message})
}

func TestDispatcher_CloseClosesEveryConnection(t *testing.T) {
	d := newTestDispatcher()
	a, b := newFakeConn("a"), newFakeConn("b")
	d.Register("x", a)
	d.Register("y", b)

	d.Close()

	require.True(t, a.isClosed())
	require.True(t, b.isClosed())
}
