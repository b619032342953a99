package message

import "fmt"

// Kind identifies which conversation variant a message belongs to.
type Kind int

const (
	KindDirect Kind = iota
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "direct":
		return KindDirect, nil
	case "group":
		return KindGroup, nil
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// Quote points at a previously sent message by its server and client ids.
type Quote struct {
	GlobalMsgID string
	CliMsgID    string
	OwnerID     string
	Text        string
	Timestamp   int64
}

// Data is the payload shared by both message variants.
type Data struct {
	MsgID     string
	CliMsgID  string
	UIDFrom   string
	Content   string
	Timestamp int64
	Quote     *Quote
}

// Message is the closed set of message variants: *DirectMessage and *GroupMessage.
type Message interface {
	Kind() Kind
	Thread() string
	QuoteRef() *Quote
	isMessage()
}

// DirectMessage is a message in a one-to-one conversation.
type DirectMessage struct {
	ThreadID string
	Data     Data
}

func (m *DirectMessage) Kind() Kind       { return KindDirect }
func (m *DirectMessage) Thread() string   { return m.ThreadID }
func (m *DirectMessage) QuoteRef() *Quote { return m.Data.Quote }
func (m *DirectMessage) isMessage()       {}

// GroupMessage is a message in a group conversation.
type GroupMessage struct {
	ThreadID string
	Data     Data
}

func (m *GroupMessage) Kind() Kind       { return KindGroup }
func (m *GroupMessage) Thread() string   { return m.ThreadID }
func (m *GroupMessage) QuoteRef() *Quote { return m.Data.Quote }
func (m *GroupMessage) isMessage()       {}

// New builds the variant matching kind.
func New(kind Kind, threadID string, data Data) (Message, error) {
	switch kind {
	case KindDirect:
		return &DirectMessage{ThreadID: threadID, Data: data}, nil
	case KindGroup:
		return &GroupMessage{ThreadID: threadID, Data: data}, nil
	}
	return nil, fmt.Errorf("unknown message kind %s", kind)
}
