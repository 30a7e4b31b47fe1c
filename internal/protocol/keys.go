package protocol

import "strings"

// keySequences maps named special keys to the byte sequences a terminal
// expects. Arrow keys use the normal-mode CSI sequences.
var keySequences = map[string]string{
	"enter":     "\r",
	"tab":       "\t",
	"backspace": "\x7f",
	"escape":    "\x1b",
	"up":        "\x1b[A",
	"down":      "\x1b[B",
	"right":     "\x1b[C",
	"left":      "\x1b[D",
	"home":      "\x1b[H",
	"end":       "\x1b[F",
	"pageup":    "\x1b[5~",
	"pagedown":  "\x1b[6~",
	"delete":    "\x1b[3~",
	"insert":    "\x1b[2~",
}

// KeySequence resolves a named special key to its escape sequence.
// "ctrl-a" through "ctrl-z" map to the control characters 0x01..0x1a.
func KeySequence(name string) ([]byte, error) {
	key := strings.ToLower(name)

	if seq, ok := keySequences[key]; ok {
		return []byte(seq), nil
	}

	if rest, ok := strings.CutPrefix(key, "ctrl-"); ok && len(rest) == 1 {
		c := rest[0]
		if c >= 'a' && c <= 'z' {
			return []byte{c - 'a' + 1}, nil
		}
	}

	return nil, &Error{Field: "key", Reason: "unknown key name: " + name}
}

// KnownKeys returns the named keys accepted by KeySequence, not counting the
// ctrl- combinations.
func KnownKeys() []string {
	keys := make([]string, 0, len(keySequences))
	for k := range keySequences {
		keys = append(keys, k)
	}
	return keys
}
