package a2a

import "context"

// Message is a single message exchanged between two endpoints. A Message is
// never mutated after creation; the engine copies it with a field override
// when it needs to re-stamp the sender or recipient.
type Message struct {
	Sender    string
	Recipient string // empty means broadcast to every other endpoint
	Content   any
	Metadata  map[string]any
}

func (m Message) withSender(name string) Message {
	m.Sender = name
	return m
}

func (m Message) withRecipient(name string) Message {
	m.Recipient = name
	return m
}

// Handler processes one inbound message. history is a snapshot of every
// message routed so far, oldest first; handlers must not mutate msg or
// history. Handlers that perform network I/O take their deadline from ctx.
type Handler func(ctx context.Context, msg Message, history []Message) (Reply, error)

// Endpoint is a named participant registered with a Protocol. A name is
// unique within the Protocol it is registered with.
type Endpoint struct {
	Name    string
	Handler Handler
}

type replyKind uint8

const (
	replyNone replyKind = iota
	replyMessage
	replyText
	replyFields
	replyMulti
	replyValue
)

// Reply is a handler's output: one of six shapes, built with the constructor
// functions below. The zero value is NoReply. The engine converts each shape
// into zero or more routable messages with normalize.
type Reply struct {
	kind   replyKind
	msg    Message
	text   string
	fields map[string]any
	items  []Reply
	value  any
}

// NoReply produces no outbound messages; a conversation ends when every
// handler returns it.
func NoReply() Reply { return Reply{} }

// Forward emits m as-is, except that the engine re-stamps the sender with the
// endpoint that produced it and fills an empty recipient with the default.
func Forward(m Message) Reply { return Reply{kind: replyMessage, msg: m} }

// Text emits a single message whose content is s.
func Text(s string) Reply { return Reply{kind: replyText, text: s} }

// Fields emits a single message built from a mapping. The "recipient" and
// "metadata" keys, when present, populate the message's own fields; the rest
// becomes the content.
func Fields(f map[string]any) Reply { return Reply{kind: replyFields, fields: f} }

// Multi concatenates the messages of each item, in order.
func Multi(items ...Reply) Reply { return Reply{kind: replyMulti, items: items} }

// Value emits a single message carrying an arbitrary content value.
func Value(v any) Reply { return Reply{kind: replyValue, value: v} }

// normalize converts a reply into routable messages. sender is the endpoint
// that produced the reply and overrides whatever sender a forwarded message
// claims. defaultRecipient addresses implicit replies back at the originator
// of the message being answered; it is empty when nothing was routed.
func normalize(r Reply, sender, defaultRecipient string) []Message {
	switch r.kind {
	case replyNone:
		return nil

	case replyMessage:
		msg := r.msg
		if msg.Sender != sender {
			msg = msg.withSender(sender)
		}
		if msg.Recipient == "" && defaultRecipient != "" {
			msg = msg.withRecipient(defaultRecipient)
		}
		return []Message{msg}

	case replyText:
		return []Message{{Sender: sender, Recipient: defaultRecipient, Content: r.text}}

	case replyFields:
		content := make(map[string]any, len(r.fields))
		for k, v := range r.fields {
			content[k] = v
		}
		var metadata map[string]any
		if raw, ok := content["metadata"]; ok {
			delete(content, "metadata")
			if md, ok := raw.(map[string]any); ok {
				metadata = md
			}
		}
		recipient := defaultRecipient
		if raw, ok := content["recipient"]; ok {
			delete(content, "recipient")
			// Presence of the key decides the addressing: a string names the
			// recipient, any other value leaves the message unaddressed.
			recipient = ""
			if name, ok := raw.(string); ok {
				recipient = name
			}
		}
		return []Message{{Sender: sender, Recipient: recipient, Content: content, Metadata: metadata}}

	case replyMulti:
		var out []Message
		for _, item := range r.items {
			out = append(out, normalize(item, sender, defaultRecipient)...)
		}
		return out

	default:
		return []Message{{Sender: sender, Recipient: defaultRecipient, Content: r.value}}
	}
}
