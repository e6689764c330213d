package tools

import (
	"context"
	"os/exec"
)

// Volume adjusts the host's master volume through amixer. The box is a
// Raspberry Pi wired to the living-room speakers.
type Volume struct {
	run func(ctx context.Context, args ...string) error
}

// NewVolume creates the volume tool.
func NewVolume() *Volume {
	return &Volume{
		run: func(ctx context.Context, args ...string) error {
			return exec.CommandContext(ctx, "amixer", args...).Run()
		},
	}
}

func (v *Volume) Spec() *Spec {
	return &Spec{
		Name:        "controle_media",
		Description: "Gère le volume du système (Raspberry Pi).",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Description: "Action volume système",
					Enum: []string{"volume_monter", "volume_baisser", "mute"}},
			},
			Required: []string{"action"},
		},
	}
}

func (v *Volume) Handle(ctx context.Context, args map[string]any) string {
	action := StringArg(args, "action", "")

	var err error
	switch action {
	case "mute":
		err = v.run(ctx, "sset", "Master", "toggle")
	case "volume_monter":
		err = v.run(ctx, "sset", "Master", "10%+")
	case "volume_baisser":
		err = v.run(ctx, "sset", "Master", "10%-")
	default:
		return "Action inconnue : " + action
	}
	if err != nil {
		return "Erreur volume système."
	}
	return "Volume système ajusté."
}
