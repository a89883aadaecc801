package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"joona/pkg/protocol"
)

var (
	ErrNotDeviceIntent = errors.New("not a device intent")
	ErrUnknownDevice   = errors.New("unknown device")
	ErrDeviceRefused   = errors.New("hub refused")
)

type hubDevice struct {
	keyword string
	hub     string
	noun    string
}

// deviceRegistry maps spoken device names onto hub addresses. The first
// keyword contained in the spoken name wins.
var deviceRegistry = []hubDevice{
	{keyword: "lamp", hub: "VERTEX", noun: "LAMP"},
	{keyword: "light", hub: "VERTEX", noun: "LAMP"},
	{keyword: "fan", hub: "VERTEX", noun: "FAN"},
	{keyword: "speaker", hub: "ALARM", noun: "AUDIO"},
}

// Frame builds the hub frame [TO, VERB, NOUN] for a device result.
func Frame(res Result) ([]string, error) {
	var verb string
	switch res.Intent {
	case IntentTurnOnDevice:
		verb = "ON"
	case IntentTurnOffDevice:
		verb = "OFF"
	default:
		return nil, fmt.Errorf("%s: %w", res.Intent, ErrNotDeviceIntent)
	}

	name := strings.ToLower(res.Device)
	for _, d := range deviceRegistry {
		if strings.Contains(name, d.keyword) {
			return []string{d.hub, verb, d.noun}, nil
		}
	}

	return nil, fmt.Errorf("%q: %w", res.Device, ErrUnknownDevice)
}

// Dispatch sends a device result to the hub and returns the hub's reply.
func Dispatch(ctx context.Context, res Result, hub *protocol.Client) (string, error) {
	frame, err := Frame(res)
	if err != nil {
		return "", err
	}

	reply, err := hub.Request(ctx, frame...)
	if err != nil {
		return "", err
	}
	if reply.Refused() {
		return "", fmt.Errorf("%s: %w", reply, ErrDeviceRefused)
	}

	return reply.String(), nil
}
