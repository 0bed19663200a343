// Package apigateway translates inbound wire messages into ApiRequest
// terms and serializes ApiResponse (and event/dialogue) terms back into
// outbound wire messages. It knows nothing about
// transport: callers hand it a raw message string and get a term back,
// or hand it a term and get a raw message string back.
package apigateway

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"cogkernel/internal/kerr"
	"cogkernel/internal/term"
)

// inboundEnvelope is the reference JSON shape of an inbound request.
// Raw is not filled in: command-specific fields beyond requestId are
// read by the builders below from a separate decode of the message into
// a map[string]json.RawMessage.
type inboundEnvelope struct {
	Type      string          `json:"type"`
	Command   string          `json:"command"`
	RequestID string          `json:"requestId"`
	Raw       json.RawMessage `json:"-"`
}

// ParseInbound decodes a raw wire message and builds the
// (ApiRequest <requestId> <commandTerm>) term.
// Unrecognized commands are wrapped as (UnknownCommand <name> <raw>)
// rather than rejected outright.
func ParseInbound(raw string) (term.Term, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return term.Term{}, fmt.Errorf("apigateway: parse inbound message: %w", err)
	}

	var env inboundEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return term.Term{}, fmt.Errorf("apigateway: parse inbound envelope: %w", err)
	}
	if env.RequestID == "" {
		env.RequestID = uuid.NewString()
	}

	cmdTerm, err := buildCommandTerm(env.Command, fields)
	if err != nil {
		if err == kerr.ErrGatewayUnknownCommand {
			cmdTerm = term.Lst(term.Atom("UnknownCommand"), term.Atom(env.Command), term.Str(raw))
		} else {
			return term.Term{}, err
		}
	}

	return term.Lst(term.Atom("ApiRequest"), term.Atom(env.RequestID), cmdTerm), nil
}

func fieldString(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw, &s)
	return s
}

func fieldTerm(fields map[string]json.RawMessage, key string) term.Term {
	raw, ok := fields[key]
	if !ok {
		return term.Atom("nil")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return term.Atom("nil")
	}
	return jsonToTerm(v)
}

// buildCommandTerm dispatches on command, building the typed term each
// inbound command produces. Returns
// kerr.ErrGatewayUnknownCommand for anything not in the list.
func buildCommandTerm(command string, f map[string]json.RawMessage) (term.Term, error) {
	switch command {
	case "assertKif":
		kifStr := fieldString(f, "kif")
		parsed, err := term.ParseAll(kifStr)
		if err != nil {
			return term.Term{}, fmt.Errorf("apigateway: assertKif: parse kif: %w", err)
		}
		items := append([]term.Term{term.Atom("AssertKif")}, parsed...)
		return term.Lst(items...), nil
	case "runTool":
		return term.Lst(term.Atom("RunTool"),
			term.Atom(fieldString(f, "toolName")),
			fieldTerm(f, "parameters")), nil
	case "runQuery":
		return term.Lst(term.Atom("RunQuery"),
			term.Atom(fieldString(f, "queryType")),
			fieldTerm(f, "pattern")), nil
	case "retract":
		return term.Lst(term.Atom("Retract"), fieldTerm(f, "target")), nil
	case "addNote":
		return term.Lst(term.Atom("AddNote"), fieldTerm(f, "target")), nil
	case "updateNote":
		return term.Lst(term.Atom("UpdateNote"),
			term.Atom(fieldString(f, "noteId")), fieldTerm(f, "target")), nil
	case "deleteNote":
		return term.Lst(term.Atom("DeleteNote"), term.Atom(fieldString(f, "noteId"))), nil
	case "cloneNote":
		return term.Lst(term.Atom("CloneNote"), term.Atom(fieldString(f, "noteId"))), nil
	case "clearAll":
		return term.Lst(term.Atom("ClearAll")), nil
	case "updateSettings":
		return term.Lst(term.Atom("UpdateSettings"), fieldTerm(f, "settings")), nil
	case "cancelDialogue":
		return term.Lst(term.Atom("CancelDialogue"), term.Atom(fieldString(f, "dialogueId"))), nil
	case "dialogueResponse":
		return term.Lst(term.Atom("DialogueResponse"),
			term.Atom(fieldString(f, "dialogueId")), fieldTerm(f, "responseData")), nil
	case "getInitialState":
		return term.Lst(term.Atom("GetInitialState")), nil
	case "wait":
		return term.Lst(term.Atom("Wait")), nil
	default:
		return term.Term{}, kerr.ErrGatewayUnknownCommand
	}
}

// jsonToTerm converts a generic decoded JSON value into a term, the
// inverse of TermToJSON, used to build command parameter/pattern terms
// from the wire payload.
func jsonToTerm(v any) term.Term {
	switch x := v.(type) {
	case nil:
		return term.Atom("nil")
	case bool:
		if x {
			return term.Atom("true")
		}
		return term.Atom("false")
	case float64:
		return term.Num(x)
	case string:
		if len(x) > 0 && x[0] == '?' {
			return term.Var(x[1:])
		}
		return term.Str(x)
	case []any:
		items := make([]term.Term, len(x))
		for i, e := range x {
			items[i] = jsonToTerm(e)
		}
		return term.Lst(items...)
	case map[string]any:
		if opRaw, ok := x["op"]; ok {
			if op, ok := opRaw.(string); ok {
				var args []any
				if a, ok := x["args"].([]any); ok {
					args = a
				}
				items := make([]term.Term, 0, len(args)+1)
				items = append(items, term.Atom(op))
				for _, e := range args {
					items = append(items, jsonToTerm(e))
				}
				return term.Lst(items...)
			}
		}
		// Fallback: encode an arbitrary object as an (object (key
		// value) ...) term so no information is silently dropped.
		items := []term.Term{term.Atom("object")}
		for k, val := range x {
			items = append(items, term.Lst(term.Atom(k), jsonToTerm(val)))
		}
		return term.Lst(items...)
	default:
		return term.Str(fmt.Sprintf("%v", x))
	}
}

// TermToJSON implements the term->JSON mapping: Atoms become
// string/number/boolean when they parse as such, Str becomes a JSON
// string, Num a JSON number, Var "?name", an operator-headed Lst
// {op, args}, and any other Lst a plain JSON array.
func TermToJSON(t term.Term) any {
	switch {
	case t.IsAtom():
		name, _ := t.AtomName()
		if name == "true" {
			return true
		}
		if name == "false" {
			return false
		}
		if n, err := strconv.ParseFloat(name, 64); err == nil {
			return n
		}
		return name
	case t.IsStr():
		s, _ := t.StrValue()
		return s
	case t.IsNum():
		n, _ := t.NumValue()
		return n
	case t.IsVar():
		v, _ := t.VarName()
		return "?" + v
	case t.IsLst():
		if op, ok := t.Operator(); ok {
			items := t.Items()
			args := make([]any, len(items)-1)
			for i, s := range items[1:] {
				args[i] = TermToJSON(s)
			}
			return map[string]any{"op": op, "args": args}
		}
		items := t.Items()
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = TermToJSON(s)
		}
		return out
	}
	return nil
}

// UpdateType enumerates the kinds of outbound message the gateway
// produces.
type UpdateType string

const (
	UpdateResponse      UpdateType = "response"
	UpdateEvent         UpdateType = "event"
	UpdateInitialState  UpdateType = "initialState"
	UpdateDialogueReq   UpdateType = "dialogueRequest"
)

type outboundMessage struct {
	Type         string     `json:"type"`
	UpdateType   UpdateType `json:"updateType"`
	ID           string     `json:"id"`
	InReplyToID  string     `json:"inReplyToId,omitempty"`
	RequestID    string     `json:"requestId,omitempty"`
	Content      any        `json:"content,omitempty"`
	Payload      any        `json:"payload,omitempty"`
}

// ConvertApiResponseToMessage expects a (ApiResponse <requestId>
// <contentTerm>) assertion term and produces the {type:"update",
// updateType:"response", requestId, content} wire message.
func ConvertApiResponseToMessage(responseTerm term.Term) (string, error) {
	op, ok := responseTerm.Operator()
	if !ok || op != "ApiResponse" || responseTerm.Arity() != 2 {
		return "", fmt.Errorf("apigateway: %w: expected (ApiResponse <requestId> <content>), got %s",
			kerr.ErrInvalidTerm, responseTerm.String())
	}
	reqIDTerm, _ := responseTerm.Arg(0)
	contentTerm, _ := responseTerm.Arg(1)
	reqID, _ := reqIDTerm.AtomName()

	msg := outboundMessage{
		Type:        "update",
		UpdateType:  UpdateResponse,
		ID:          uuid.NewString(),
		InReplyToID: reqID,
		RequestID:   reqID,
		Content:     TermToJSON(contentTerm),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("apigateway: marshal response: %w", err)
	}
	return string(data), nil
}

// ConvertEventToMessage wraps an arbitrary Event term as an outbound
// "event" update.
func ConvertEventToMessage(eventTerm term.Term) (string, error) {
	msg := outboundMessage{
		Type:       "update",
		UpdateType: UpdateEvent,
		ID:         uuid.NewString(),
		Payload:    TermToJSON(eventTerm),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("apigateway: marshal event: %w", err)
	}
	return string(data), nil
}

// ConvertDialogueRequestToMessage wraps a (DialogueRequest ...) term as
// an outbound "dialogueRequest" update.
func ConvertDialogueRequestToMessage(dialogueTerm term.Term) (string, error) {
	msg := outboundMessage{
		Type:       "update",
		UpdateType: UpdateDialogueReq,
		ID:         uuid.NewString(),
		Payload:    TermToJSON(dialogueTerm),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("apigateway: marshal dialogue request: %w", err)
	}
	return string(data), nil
}

// ConvertInitialStateToMessage wraps a snapshot term as an outbound
// "initialState" update.
func ConvertInitialStateToMessage(stateTerm term.Term) (string, error) {
	msg := outboundMessage{
		Type:       "update",
		UpdateType: UpdateInitialState,
		ID:         uuid.NewString(),
		Payload:    TermToJSON(stateTerm),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("apigateway: marshal initial state: %w", err)
	}
	return string(data), nil
}
