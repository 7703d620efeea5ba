package engine

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// ReplyOn decides when the host calls back into the dispatching contract.
type ReplyOn string

const (
	ReplyNever   ReplyOn = "never"
	ReplySuccess ReplyOn = "success"
	ReplyError   ReplyOn = "error"
	ReplyAlways  ReplyOn = "always"
)

// WantsReply reports whether a reply is due for the given outcome.
func (r ReplyOn) WantsReply(failed bool) bool {
	switch r {
	case ReplyAlways:
		return true
	case ReplySuccess:
		return !failed
	case ReplyError:
		return failed
	default:
		return false
	}
}

// InstantiateMsg asks the host to spawn a new contract instance from stored code.
type InstantiateMsg struct {
	CodeID uint64          `json:"codeId"`
	Admin  *common.Address `json:"admin,omitempty"`
	Msg    json.RawMessage `json:"msg"`
	Funds  Coins           `json:"funds,omitempty"`
	Label  string          `json:"label"`
}

// BankSend moves value from the dispatching contract to another account.
type BankSend struct {
	ToAddress common.Address `json:"toAddress"`
	Amount    Coins          `json:"amount"`
}

// ExecuteMsg calls another contract.
type ExecuteMsg struct {
	Contract common.Address  `json:"contract"`
	Msg      json.RawMessage `json:"msg"`
	Funds    Coins           `json:"funds,omitempty"`
}

// CosmosMsg is an outbound intent. Exactly one field is set.
type CosmosMsg struct {
	Instantiate *InstantiateMsg `json:"instantiate,omitempty"`
	Bank        *BankSend       `json:"bank,omitempty"`
	Execute     *ExecuteMsg     `json:"execute,omitempty"`
}

// Kind names the intent for logs and metrics.
func (m CosmosMsg) Kind() string {
	switch {
	case m.Instantiate != nil:
		return "instantiate"
	case m.Bank != nil:
		return "bank_send"
	case m.Execute != nil:
		return "execute"
	default:
		return "unknown"
	}
}

// SubMsg is a dispatch: an intent tagged with a correlation id and a reply policy.
type SubMsg struct {
	ID      uint64    `json:"id"`
	Msg     CosmosMsg `json:"msg"`
	ReplyOn ReplyOn   `json:"replyOn"`
}

// Attribute is a single key/value observation.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event groups attributes under a type.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Attr returns the first value stored under key.
func (e Event) Attr(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SubMsgResponse is what a successful dispatch hands back.
type SubMsgResponse struct {
	Events []Event `json:"events"`
	Data   []byte  `json:"data,omitempty"`
}

// SubMsgResult holds either a response or an error string.
type SubMsgResult struct {
	Ok  *SubMsgResponse `json:"ok,omitempty"`
	Err string          `json:"error,omitempty"`
}

// IsOk reports whether the dispatch succeeded.
func (r SubMsgResult) IsOk() bool { return r.Ok != nil }

// Reply is delivered by the host once a dispatch completes.
type Reply struct {
	ID     uint64       `json:"id"`
	Result SubMsgResult `json:"result"`
}

// Response is what every contract entry point returns to the host.
type Response struct {
	Messages   []SubMsg    `json:"messages,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Events     []Event     `json:"events,omitempty"`
	Data       []byte      `json:"data,omitempty"`
}

func NewResponse() *Response {
	return &Response{}
}

func (r *Response) AddSubMessage(msg SubMsg) *Response {
	r.Messages = append(r.Messages, msg)
	return r
}

// AddMessage adds a dispatch that never replies.
func (r *Response) AddMessage(msg CosmosMsg) *Response {
	return r.AddSubMessage(SubMsg{Msg: msg, ReplyOn: ReplyNever})
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) AddEvent(ev Event) *Response {
	r.Events = append(r.Events, ev)
	return r
}

func (r *Response) SetData(data []byte) *Response {
	r.Data = data
	return r
}
