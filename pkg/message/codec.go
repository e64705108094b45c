package message

import (
	"encoding/json"
	"fmt"

	"github.com/quickrtc/p2p-go/pkg/sysinfo"
	"github.com/tidwall/gjson"
)

// The wire format is a JSON envelope `{"type": <tag>, "data": <payload>}`.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type userAgentData struct {
	UserAgent sysinfo.UserAgent `json:"ua"`
}

type signalData struct {
	Type          string `json:"type"`
	SDP           string `json:"sdp,omitempty"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex *int   `json:"sdpMLineIndex,omitempty"`
	Candidate     string `json:"candidate,omitempty"`
}

// Decode parses a raw signaling message into one of the message variants.
// Anything that is not a well-formed envelope with a known type yields an
// error; the caller is expected to log and drop such messages rather than
// surface them to the user.
func Decode(raw string) (Content, error) {
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("malformed signaling message")
	}

	messageType := gjson.Get(raw, "type")
	if !messageType.Exists() {
		return nil, fmt.Errorf("signaling message without a type")
	}

	data := gjson.Get(raw, "data").Raw

	switch messageType.String() {
	case typeInvitation:
		ua, err := decodeUserAgent(data)
		if err != nil {
			return nil, err
		}
		return Invitation{UserAgent: ua}, nil
	case typeAcceptance:
		ua, err := decodeUserAgent(data)
		if err != nil {
			return nil, err
		}
		return Acceptance{UserAgent: ua}, nil
	case typeDenial:
		return Denial{}, nil
	case typeClosed:
		return Closed{}, nil
	case typeNegotiationNeeded:
		return NegotiationNeeded{}, nil
	case typeSignal:
		return decodeSignal(data)
	case typeTrackSources:
		var sources []TrackSource
		if err := json.Unmarshal([]byte(data), &sources); err != nil {
			return nil, fmt.Errorf("failed to parse track sources: %w", err)
		}
		return TrackSources{Sources: sources}, nil
	default:
		return nil, fmt.Errorf("unknown signaling message type: %s", messageType.String())
	}
}

// Encode turns a message variant back into its wire representation.
func Encode(content Content) (string, error) {
	switch msg := content.(type) {
	case Invitation:
		return encode(typeInvitation, userAgentData{msg.UserAgent})
	case Acceptance:
		return encode(typeAcceptance, userAgentData{msg.UserAgent})
	case Denial:
		return encode(typeDenial, nil)
	case Closed:
		return encode(typeClosed, nil)
	case NegotiationNeeded:
		return encode(typeNegotiationNeeded, nil)
	case Description:
		return encode(typeSignal, signalData{Type: msg.Type, SDP: msg.SDP})
	case Candidate:
		index := msg.SDPMLineIndex
		return encode(typeSignal, signalData{
			Type:          signalCandidates,
			SDPMid:        msg.SDPMid,
			SDPMLineIndex: &index,
			Candidate:     msg.Candidate,
		})
	case TrackSources:
		return encode(typeTrackSources, msg.Sources)
	default:
		return "", fmt.Errorf("unknown signaling message variant: %T", content)
	}
}

func encode(messageType string, data interface{}) (string, error) {
	env := envelope{Type: messageType}

	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s payload: %w", messageType, err)
		}
		env.Data = encoded
	}

	encoded, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s envelope: %w", messageType, err)
	}

	return string(encoded), nil
}

func decodeUserAgent(data string) (sysinfo.UserAgent, error) {
	var payload userAgentData
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return sysinfo.UserAgent{}, fmt.Errorf("failed to parse user agent: %w", err)
	}

	return payload.UserAgent, nil
}

func decodeSignal(data string) (Content, error) {
	var payload signalData
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse signal payload: %w", err)
	}

	switch payload.Type {
	case signalOffer, signalAnswer:
		return Description{Type: payload.Type, SDP: payload.SDP}, nil
	case signalCandidates:
		index := 0
		if payload.SDPMLineIndex != nil {
			index = *payload.SDPMLineIndex
		}
		return Candidate{
			SDPMid:        payload.SDPMid,
			SDPMLineIndex: index,
			Candidate:     payload.Candidate,
		}, nil
	default:
		return nil, fmt.Errorf("unknown signal type: %s", payload.Type)
	}
}
