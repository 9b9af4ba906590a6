package keyboard

// Grid cell tokens are at most three characters wide; several keys use a
// short form that differs from the KeyID written by the keystroke logger.
var cellToKey = map[string]KeyID{
	"A": "A", "B": "B", "C": "C", "D": "D", "E": "E", "F": "F",
	"G": "G", "H": "H", "I": "I", "J": "J", "K": "K", "L": "L",
	"M": "M", "N": "N", "O": "O", "P": "P", "Q": "Q", "R": "R",
	"S": "S", "T": "T", "U": "U", "V": "V", "W": "W", "X": "X",
	"Y": "Y", "Z": "Z",
	"1": "Key1", "2": "Key2", "3": "Key3", "4": "Key4", "5": "Key5",
	"6": "Key6", "7": "Key7", "8": "Key8", "9": "Key9", "0": "Key0",
	"~":   "Grave",
	"Tab": "Tab",
	"Esc": "Escape",
	"LSh": "LShift", "RSh": "RShift",
	"LCt": "LControl", "RCt": "RControl",
	"LAt": "LAlt", "RAt": "RAlt",
	"LMt": "LMeta", "RMt": "RMeta",
	"Cap": "CapsLock",
	"<--": "Left", "-->": "Right",
	"Up": "Up", "Dn": "Down",
	"Bks": "Backspace", "Del": "Delete",
	"Hom": "Home", "End": "End",
	"PUp": "PageUp", "PDn": "PageDown",
	"Etr": "Enter", "Spc": "Space",
	"[": "LeftBracket", "]": "RightBracket",
	",": "Comma", ".": "Dot", "/": "Slash",
	";": "Semicolon", "'": "Apostrophe",
	"\\": "BackSlash", "-": "Minus", "=": "Equal",
}

var keyToCell = func() map[KeyID]string {
	out := make(map[KeyID]string, len(cellToKey))
	for cell, key := range cellToKey {
		out[key] = cell
	}
	return out
}()

var fingerByAbbrev = map[string]Finger{
	"LP": {LeftHand, Pinky},
	"LR": {LeftHand, Ring},
	"LM": {LeftHand, Middle},
	"LI": {LeftHand, Index},
	"LT": {LeftHand, Thumb},
	"RT": {RightHand, Thumb},
	"RI": {RightHand, Index},
	"RM": {RightHand, Middle},
	"RR": {RightHand, Ring},
	"RP": {RightHand, Pinky},
}

func fingerAbbrev(f Finger) string {
	hand := "L"
	if f.Hand == RightHand {
		hand = "R"
	}
	var kind string
	switch f.Kind {
	case Pinky:
		kind = "P"
	case Ring:
		kind = "R"
	case Middle:
		kind = "M"
	case Index:
		kind = "I"
	case Thumb:
		kind = "T"
	}
	return hand + kind
}

// AllFingers lists the ten fingers in a stable order.
func AllFingers() []Finger {
	fingers := make([]Finger, 0, 10)
	for _, hand := range []Hand{LeftHand, RightHand} {
		for _, kind := range []FingerKind{Pinky, Ring, Middle, Index, Thumb} {
			fingers = append(fingers, Finger{Hand: hand, Kind: kind})
		}
	}
	return fingers
}
