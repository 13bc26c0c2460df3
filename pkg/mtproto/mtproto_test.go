package mtproto

import (
	"reflect"
	"testing"

	"github.com/gotd/td/tg"
)

func TestPeerID(t *testing.T) {
	tests := []struct {
		in   int64
		want int64
	}{
		{in: 1685845137, want: 1685845137},
		{in: -1001685845137, want: 1685845137},
		{in: -4567, want: 4567},
	}
	for _, tt := range tests {
		if got := PeerID(tt.in); got != tt.want {
			t.Errorf("%d: want %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestHandle(t *testing.T) {
	var got []Message
	l := New(0, "", "", "", []int64{777}, t.Log, func(m Message) {
		got = append(got, m)
	}, nil)

	entities := tg.Entities{
		Channels: map[int64]*tg.Channel{1685845137: {ID: 1685845137, Title: "Gold Signals"}},
		Chats:    map[int64]*tg.Chat{4567: {ID: 4567, Title: "Admins"}},
		Users:    map[int64]*tg.User{42: {ID: 42, FirstName: "Ana"}},
	}
	l.handle(entities, &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 1685845137}, Message: "#XAUUSD SELL 4872_75"})
	l.handle(entities, &tg.Message{PeerID: &tg.PeerChannel{ChannelID: 1685845137}, Message: "mine", Out: true})
	l.handle(entities, &tg.Message{PeerID: &tg.PeerUser{UserID: 42}, Message: "hello"})
	l.handle(entities, &tg.Message{PeerID: &tg.PeerChat{ChatID: 4567}, FromID: &tg.PeerUser{UserID: 777}, Message: "⚡ *Executing Trade*"})
	l.handle(entities, &tg.Message{PeerID: &tg.PeerChat{ChatID: 4567}, FromID: &tg.PeerUser{UserID: 42}, Message: "/balance"})
	l.handle(entities, &tg.MessageEmpty{})

	want := []Message{
		{ChatID: 1685845137, Title: "Gold Signals", Text: "#XAUUSD SELL 4872_75"},
		{ChatID: 42, Title: "Ana", Text: "hello"},
		{ChatID: 4567, Title: "Admins", Text: "/balance"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got: %+v, want: %+v", got, want)
	}
}
