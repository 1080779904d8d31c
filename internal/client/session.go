package client

import (
	"strings"

	"github.com/meetwire/meetwire/internal/proto"
)

// DeriveRoomID builds the private room id for a pair of identities. The
// result is symmetric: both participants derive the same id regardless of
// argument order.
func DeriveRoomID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "_" + b
}

// session holds the state scoped to the single active room. It is owned by
// the Client and only touched under its mutex.
type session struct {
	room     string
	messages []proto.ChatMessageData
	members  []string
	// typingBy is the remote identity currently reported as typing, empty
	// when nobody is.
	typingBy string
}

func (s *session) reset(room string) {
	s.room = room
	s.messages = nil
	s.typingBy = ""
}

// replaceHistory swaps the full message list, dropping any local state.
func (s *session) replaceHistory(msgs []proto.ChatMessageData) {
	s.messages = append(s.messages[:0:0], msgs...)
}

func (s *session) append(msg proto.ChatMessageData) {
	s.messages = append(s.messages, msg)
}

// removeByID deletes one message and reports whether it was present.
func (s *session) removeByID(id int64) bool {
	for i, m := range s.messages {
		if m.ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return true
		}
	}
	return false
}
