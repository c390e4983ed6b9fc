package hostlink

import "encoding/json"

// Message types sent by the host page.
const (
	TypeReady   = "ready"   // chat widget ready, with Capabilities
	TypeContact = "contact" // visitor submitted contact details
	TypeSignal  = "signal"  // SDK signal for a subscribed name
	TypeReply   = "reply"   // answer to a request
	TypeStart   = "start"   // run the bootstrap without new contact details
	TypeLaunch  = "launch"  // visitor asked to open the chat
)

// Message types sent to the host page. All but notify expect a reply.
const (
	TypeLoad      = "load"      // load the SDK bundle (payload: compiler.Bootstrap)
	TypeCommand   = "command"   // queue a tracker command
	TypeSubscribe = "subscribe" // forward a signal as TypeSignal messages
	TypeWidget    = "widget"    // call the chat widget API
	TypeNotify    = "notify"    // show a toast
)

// Widget methods carried in Message.Name for TypeWidget.
const (
	WidgetShow   = "showChatButton"
	WidgetHide   = "hideChatButton"
	WidgetLaunch = "launchChat"
	WidgetHidden = "setHiddenPrechatFields"
)

// ReplyUnavailable is the reply error a page sends when the widget API is absent.
const ReplyUnavailable = "unavailable"

// Message is the envelope for both directions.
type Message struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Capabilities reports which chat widget APIs the page found.
type Capabilities struct {
	Prechat bool `json:"prechat"`
	Util    bool `json:"util"`
}
