package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Wiz drives a WiZ smart plug over its local UDP protocol. The plug
// drops packets under wifi pressure, so every command gets a few tries.
type Wiz struct {
	addr     string
	attempts int
	timeout  time.Duration
}

// NewWiz creates the plug tool. Empty ip disables it.
func NewWiz(ip string) *Wiz {
	w := &Wiz{attempts: 3, timeout: 2 * time.Second}
	if ip != "" {
		w.addr = net.JoinHostPort(ip, "38899")
	}
	return w
}

func (w *Wiz) Spec() *Spec {
	return &Spec{
		Name:        "commander_prise",
		Description: "Pilote la prise connectée WiZ (PC).",
		Parameters: &ParamSchema{
			Type: "object",
			Properties: map[string]*ParamProp{
				"action": {Type: "string", Description: "Action prise connectée",
					Enum: []string{"allumer", "eteindre", "statut"}},
			},
			Required: []string{"action"},
		},
	}
}

type wizResponse struct {
	Result struct {
		State   bool `json:"state"`
		Success bool `json:"success"`
	} `json:"result"`
}

func (w *Wiz) Handle(ctx context.Context, args map[string]any) string {
	if w.addr == "" {
		return "IP de la prise WiZ non configurée."
	}
	action := StringArg(args, "action", "")

	switch action {
	case "statut":
		resp, err := w.send(ctx, map[string]any{"method": "getPilot", "params": map[string]any{}})
		if err != nil {
			return "Je n'arrive pas à joindre la prise (après 3 tentatives)."
		}
		etat := "Éteinte 🔴"
		if resp.Result.State {
			etat = "Allumée 🟢"
		}
		return fmt.Sprintf("La prise 'PC' est actuellement : %s", etat)

	case "allumer", "eteindre":
		state := action == "allumer"
		resp, err := w.send(ctx, map[string]any{"method": "setPilot", "params": map[string]any{"state": state}})
		if err != nil {
			return "La prise ne répond pas. Vérifie qu'elle est bien branchée."
		}
		if resp.Result.Success {
			return fmt.Sprintf("Prise %se avec succès.", action)
		}
		// Some firmwares answer without an explicit success flag; a
		// reply at all means the order went through.
		return fmt.Sprintf("Ordre envoyé (Prise %se).", action)

	default:
		return fmt.Sprintf("Action inconnue : %s", action)
	}
}

// send fires the JSON payload over UDP and waits for the reply,
// retrying on timeout.
func (w *Wiz) send(ctx context.Context, payload map[string]any) (*wizResponse, error) {
	message, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < w.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := w.exchange(message)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, lastErr
}

func (w *Wiz) exchange(message []byte) (*wizResponse, error) {
	conn, err := net.Dial("udp", w.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(w.timeout)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(message); err != nil {
		return nil, err
	}

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	var resp wizResponse
	if err := json.Unmarshal(buf[:n], &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
