package intent

import (
	"strings"

	"incidentbot/internal/textnorm"
)

// Command is a parsed control command. Commands bypass every heuristic tier.
type Command string

const (
	CmdNew     Command = "nuevo"
	CmdCancel  Command = "cancelar"
	CmdConfirm Command = "confirmar"
	CmdStatus  Command = "estado"
	CmdHelp    Command = "ayuda"
)

var commandAliases = map[string]Command{
	"nuevo":     CmdNew,
	"reporte":   CmdNew,
	"cancelar":  CmdCancel,
	"cancela":   CmdCancel,
	"confirmar": CmdConfirm,
	"confirmo":  CmdConfirm,
	"estado":    CmdStatus,
	"status":    CmdStatus,
	"ayuda":     CmdHelp,
	"help":      CmdHelp,
}

// ParseCommand recognizes slash-prefixed control commands ("/cancelar").
// The argument is whatever follows the verb, trimmed but not normalized.
func ParseCommand(text string) (Command, string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	body := strings.TrimPrefix(trimmed, "/")
	verb := body
	arg := ""
	if i := strings.IndexAny(body, " \t"); i >= 0 {
		verb = body[:i]
		arg = strings.TrimSpace(body[i:])
	}
	cmd, ok := commandAliases[textnorm.Normalize(verb)]
	if !ok {
		return "", "", false
	}
	return cmd, arg, true
}
